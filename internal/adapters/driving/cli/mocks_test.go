package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	result   *domain.IngestResult
	status   *domain.DocumentStatus
	removed  int
	err      error
	last     domain.IngestRequest
	observer driving.StageObserver
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.IngestResult{DocumentID: req.Tags.DocumentID, PageCount: 1, ChunkCount: 2}, nil
}

func (m *mockIngestionService) Status(_ context.Context, _ string) (*domain.DocumentStatus, error) {
	return m.status, m.err
}

func (m *mockIngestionService) Remove(_ context.Context, _ string) (int, error) {
	return m.removed, m.err
}

func (m *mockIngestionService) SupportedMIMETypes() []string {
	return []string{"application/pdf", "image/png"}
}

func (m *mockIngestionService) SetObserver(observer driving.StageObserver) {
	m.observer = observer
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	resp *domain.QueryResponse
	err  error
	last domain.QueryRequest
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &domain.QueryResponse{Query: req.Query, Results: []domain.QueryResult{}}, nil
}

// mockHealthService is a mock implementation of driving.HealthService.
type mockHealthService struct {
	report domain.HealthReport
}

func (m *mockHealthService) Check(_ context.Context) domain.HealthReport {
	return m.report
}

type testServices struct {
	ingestion *mockIngestionService
	query     *mockQueryService
	health    *mockHealthService
}

// setupTestServices injects mocks and returns them with a cleanup func.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		ingestion: &mockIngestionService{},
		query:     &mockQueryService{},
		health:    &mockHealthService{},
	}
	SetServices(&Services{
		Ingestion: ts.ingestion,
		Query:     ts.query,
		Health:    ts.health,
		Settings:  domain.DefaultSettings(),
	})

	originalTerminal := isTerminal
	isTerminal = func() bool { return false }

	return ts, func() {
		SetServices(nil)
		isTerminal = originalTerminal
	}
}

// execute runs the root command and resets flag state afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
