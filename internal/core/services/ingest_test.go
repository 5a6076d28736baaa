package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contextkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/extractors"
	"github.com/custodia-labs/contextkb/internal/extractors/vision"
	"github.com/custodia-labs/contextkb/internal/postprocessors"
	"github.com/custodia-labs/contextkb/internal/postprocessors/chunker"
)

var testTags = domain.DocumentTags{
	DocumentID: "doc-42",
	UserID:     "user-7",
	ProjectID:  "Acme",
	Filename:   "requirements.pdf",
}

type ingestFixture struct {
	svc       *IngestionService
	gateway   *VectorGateway
	backend   *spyBackend
	status    *memory.StatusStore
	extractor *fakeExtractor
	events    []domain.StageEvent
	path      string
}

func newIngestFixture(t *testing.T, pages []domain.Page) *ingestFixture {
	t.Helper()

	chunks, err := chunker.New()
	require.NoError(t, err)

	f := &ingestFixture{
		status: memory.NewStatusStore(),
		extractor: &fakeExtractor{
			kind:  driven.ExtractorDocument,
			types: []string{"application/pdf"},
			pages: pages,
		},
	}
	f.gateway, f.backend = newTestGateway(&fakeEmbedder{})
	f.svc = NewIngestionService(
		extractors.NewRegistry(f.extractor),
		postprocessors.NewPipeline(chunks),
		f.gateway,
		f.status,
	)

	var mu sync.Mutex
	f.svc.SetObserver(func(ev domain.StageEvent) {
		mu.Lock()
		defer mu.Unlock()
		f.events = append(f.events, ev)
	})

	f.path = filepath.Join(t.TempDir(), "requirements.pdf")
	require.NoError(t, os.WriteFile(f.path, []byte("%PDF-1.4"), 0600))
	return f
}

func (f *ingestFixture) request() domain.IngestRequest {
	return domain.IngestRequest{StoragePath: f.path, MIMEType: "application/pdf", Tags: testTags}
}

func (f *ingestFixture) stages() []domain.Stage {
	out := make([]domain.Stage, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Stage
	}
	return out
}

func threePages() []domain.Page {
	pages := make([]domain.Page, 3)
	for i := range pages {
		pages[i] = domain.Page{
			Number:   i + 1,
			Text:     strings.Repeat(string(rune('a'+i)), 800),
			Metadata: map[string]any{"total_pages": 3, "source": "requirements.pdf"},
		}
	}
	return pages
}

func TestIngest_ThreePageDocument(t *testing.T) {
	f := newIngestFixture(t, threePages())
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, f.request())
	require.NoError(t, err)

	assert.Equal(t, "doc-42", result.DocumentID)
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, 3, result.ChunkCount)
	assert.Equal(t, domain.StatusIngested, result.Status)

	assert.Equal(t, []domain.Stage{
		domain.StageReceived,
		domain.StageExtracted,
		domain.StageChunked,
		domain.StageSanitized,
		domain.StageEmbeddedAndStored,
		domain.StageIngested,
	}, f.stages())

	matches, err := f.gateway.Query(ctx, "a", 20, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.Equal(t, "doc-42", m.Metadata["document_id"])
		assert.Equal(t, "user-7", m.Metadata["user_id"])
		assert.Equal(t, "Acme", m.Metadata["project_id"])
		assert.Equal(t, "requirements.pdf", m.Metadata["filename"])
		assert.Contains(t, m.Metadata, "page")
	}

	status, err := f.svc.Status(ctx, "doc-42")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIngested, status.Status)
	assert.Equal(t, 3, status.ChunkCount)
}

func TestIngest_ReingestDoesNotDuplicate(t *testing.T) {
	f := newIngestFixture(t, threePages())
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, f.request())
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, f.request())
	require.NoError(t, err)

	count, err := f.gateway.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.IngestRequest)
		message string
	}{
		{"missing document id", func(r *domain.IngestRequest) { r.Tags.DocumentID = "" }, "document_id"},
		{"missing project", func(r *domain.IngestRequest) { r.Tags.ProjectID = "" }, "project_id"},
		{"missing path", func(r *domain.IngestRequest) { r.StoragePath = "" }, "storage_path"},
		{"blank document id", func(r *domain.IngestRequest) { r.Tags.DocumentID = "  " }, "document_id"},
		{"blank user", func(r *domain.IngestRequest) { r.Tags.UserID = "\t\n" }, "user_id"},
		{"blank filename", func(r *domain.IngestRequest) { r.Tags.Filename = " " }, "filename"},
		{"unsupported media type", func(r *domain.IngestRequest) { r.MIMEType = "text/csv" }, "Unsupported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, threePages())
			req := f.request()
			tt.mutate(&req)

			_, err := f.svc.Ingest(context.Background(), req)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, domain.PublicMessage(err), tt.message)
			assert.Zero(t, f.extractor.calls, "extractor must not run")
			assert.Zero(t, f.backend.upserts)
		})
	}
}

func TestIngest_MissingFile(t *testing.T) {
	f := newIngestFixture(t, threePages())
	req := f.request()
	req.StoragePath = filepath.Join(t.TempDir(), "gone.pdf")

	_, err := f.svc.Ingest(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "File not found on server", domain.PublicMessage(err))
	assert.Zero(t, f.extractor.calls)
}

func TestIngest_FailureLeavesStatusPending(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*ingestFixture)
		kind  *domain.Error
	}{
		{
			name:  "extraction",
			setup: func(f *ingestFixture) { f.extractor.err = errors.New("corrupt xref table") },
			kind:  domain.ErrExtraction,
		},
		{
			name:  "no text",
			setup: func(f *ingestFixture) { f.extractor.pages = []domain.Page{{Number: 1, Text: "   "}} },
			kind:  domain.ErrExtraction,
		},
		{
			name:  "store",
			setup: func(f *ingestFixture) { f.backend.upsertErr = errors.New("disk full") },
			kind:  domain.ErrStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, threePages())
			tt.setup(f)

			result, err := f.svc.Ingest(context.Background(), f.request())

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.kind)

			stages := f.stages()
			assert.Equal(t, domain.StageFailed, stages[len(stages)-1])
			assert.NotContains(t, stages, domain.StageIngested)

			status, err := f.status.GetStatus(context.Background(), "doc-42")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPending, status.Status)
			assert.NotEmpty(t, status.LastError)
		})
	}
}

func TestIngest_EmbeddingFailure(t *testing.T) {
	f := newIngestFixture(t, threePages())
	f.gateway.embedder = NewCheckedEmbedder(&fakeEmbedder{wrongDim: true}, testDims)

	_, err := f.svc.Ingest(context.Background(), f.request())

	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Zero(t, f.backend.upserts)

	status, err := f.status.GetStatus(context.Background(), "doc-42")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, status.Status)
}

// slowModel never answers before its context expires.
type slowModel struct{}

func (slowModel) Describe(ctx context.Context, _ string, _ []byte, _ string) (string, error) {
	select {
	case <-time.After(5 * time.Second):
		return "too late", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
func (slowModel) ModelName() string { return "slow-vision" }
func (slowModel) Close() error      { return nil }

func TestIngest_VisionTimeoutLeavesPending(t *testing.T) {
	chunks, err := chunker.New()
	require.NoError(t, err)
	gateway, backend := newTestGateway(&fakeEmbedder{})
	status := memory.NewStatusStore()

	svc := NewIngestionService(
		extractors.NewRegistry(vision.New(slowModel{}, 20*time.Millisecond)),
		postprocessors.NewPipeline(chunks),
		gateway,
		status,
	)

	path := filepath.Join(t.TempDir(), "whiteboard.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0600))

	_, err = svc.Ingest(context.Background(), domain.IngestRequest{
		StoragePath: path,
		MIMEType:    "image/png",
		Tags:        testTags,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.ErrorIs(t, err, domain.ErrRemoteExtraction)
	assert.Zero(t, backend.upserts)

	st, err := status.GetStatus(context.Background(), "doc-42")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, st.Status)
}

func TestIngest_Remove(t *testing.T) {
	f := newIngestFixture(t, threePages())
	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, f.request())
	require.NoError(t, err)

	n, err := f.svc.Remove(ctx, "doc-42")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = f.svc.Status(ctx, "doc-42")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Remove(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIngest_SupportedMIMETypes(t *testing.T) {
	f := newIngestFixture(t, nil)
	assert.Equal(t, []string{"application/pdf"}, f.svc.SupportedMIMETypes())
}
