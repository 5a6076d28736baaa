package ingestapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	result  *domain.IngestResult
	status  *domain.DocumentStatus
	removed int
	err     error
	last    domain.IngestRequest
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	m.last = req
	return m.result, m.err
}

func (m *mockIngestionService) Status(_ context.Context, _ string) (*domain.DocumentStatus, error) {
	return m.status, m.err
}

func (m *mockIngestionService) Remove(_ context.Context, _ string) (int, error) {
	return m.removed, m.err
}

func (m *mockIngestionService) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

type mockHealthService struct {
	report domain.HealthReport
}

func (m *mockHealthService) Check(_ context.Context) domain.HealthReport {
	return m.report
}

const ingestBody = `{
	"storage_path": "/data/uploads/report.pdf",
	"tags": {"document_id": "doc-1", "user_id": "u1", "project_id": "p1", "filename": "report.pdf"}
}`

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorPayload {
	t.Helper()
	var payload domain.ErrorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestNewServer_RequiresIngestion(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.ErrorIs(t, err, ErrMissingIngestionService)
}

func TestIngest_Success(t *testing.T) {
	svc := &mockIngestionService{result: &domain.IngestResult{DocumentID: "doc-1", ChunkCount: 12}}
	s, err := NewServer(svc, nil)
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, IngestPath, ingestBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, SuccessMessage, resp.Message)
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, 12, resp.ChunkCount)

	assert.Equal(t, "application/pdf", svc.last.MIMEType, "mime type inferred from extension")
	assert.Equal(t, "report.pdf", svc.last.Tags.Filename)
}

func TestIngest_MalformedBody(t *testing.T) {
	s, err := NewServer(&mockIngestionService{}, nil)
	require.NoError(t, err)

	for _, body := range []string{"not json", `{"unknown_field": 1}`} {
		rec := do(t, s, http.MethodPost, IngestPath, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		payload := decodePayload(t, rec)
		assert.True(t, payload.Error)
		assert.Contains(t, payload.Message, "Invalid request body")
	}
}

func TestIngest_ErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{
			name:    "validation",
			err:     domain.NewValidationError("Missing required fields: user_id"),
			code:    http.StatusBadRequest,
			message: "Missing required fields: user_id",
		},
		{
			name:    "missing file",
			err:     domain.NewExtractionError("File not found on server", fmt.Errorf("%w: /x.pdf", domain.ErrNotFound)),
			code:    http.StatusNotFound,
			message: "File not found on server",
		},
		{
			name:    "extraction",
			err:     domain.NewExtractionError("Failed to extract text from the document", assert.AnError),
			code:    http.StatusUnprocessableEntity,
			message: "Failed to extract text from the document",
		},
		{
			name:    "embedding",
			err:     domain.NewEmbeddingError("Embedding request failed", assert.AnError),
			code:    http.StatusBadGateway,
			message: "Embedding request failed",
		},
		{
			name:    "store",
			err:     domain.NewStoreError(domain.StoreUnreachable, "sqlite vector store is unreachable", assert.AnError),
			code:    http.StatusServiceUnavailable,
			message: "sqlite vector store is unreachable",
		},
		{
			name:    "internal",
			err:     assert.AnError,
			code:    http.StatusInternalServerError,
			message: domain.InternalMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(&mockIngestionService{err: tt.err}, nil)
			require.NoError(t, err)

			rec := do(t, s, http.MethodPost, IngestPath, ingestBody)

			assert.Equal(t, tt.code, rec.Code)
			payload := decodePayload(t, rec)
			assert.True(t, payload.Error)
			assert.Equal(t, tt.message, payload.Message)
		})
	}
}

func TestStatus(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &mockIngestionService{status: &domain.DocumentStatus{
			DocumentID: "doc-1",
			Status:     domain.StatusPending,
			LastError:  "Embedding request failed",
		}}
		s, err := NewServer(svc, nil)
		require.NoError(t, err)

		rec := do(t, s, http.MethodGet, IngestPath+"/doc-1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var status domain.DocumentStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, domain.StatusPending, status.Status)
		assert.Equal(t, "Embedding request failed", status.LastError)
	})

	t.Run("not found", func(t *testing.T) {
		s, err := NewServer(&mockIngestionService{err: domain.ErrNotFound}, nil)
		require.NoError(t, err)

		rec := do(t, s, http.MethodGet, IngestPath+"/missing", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Document not found", decodePayload(t, rec).Message)
	})
}

func TestRemove(t *testing.T) {
	s, err := NewServer(&mockIngestionService{removed: 4}, nil)
	require.NoError(t, err)

	rec := do(t, s, http.MethodDelete, IngestPath+"/doc-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "doc-1", body["document_id"])
	assert.InDelta(t, 4, body["removed_chunks"], 0)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s, err := NewServer(&mockIngestionService{}, &mockHealthService{report: domain.HealthReport{Success: true}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, HealthPath, "").Code)
	})

	t.Run("unhealthy", func(t *testing.T) {
		s, err := NewServer(&mockIngestionService{}, &mockHealthService{report: domain.HealthReport{Message: "down"}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, HealthPath, "").Code)
	})
}

func TestStartStop(t *testing.T) {
	s, err := NewServer(&mockIngestionService{}, &mockHealthService{report: domain.HealthReport{Success: true}})
	require.NoError(t, err)
	assert.Empty(t, s.Addr())

	require.NoError(t, s.Start("127.0.0.1:0"))
	defer s.Stop() //nolint:errcheck

	resp, err := http.Get("http://" + s.Addr() + HealthPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
