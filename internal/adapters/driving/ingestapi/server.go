// Package ingestapi serves the ingestion HTTP API used by the document
// management collaborator: it triggers ingestion of stored files and
// reports their ingestion status.
package ingestapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
	"github.com/custodia-labs/contextkb/internal/extractors"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// Routes.
const (
	IngestPath = "/v1/ingest"
	HealthPath = "/health"
)

// SuccessMessage is returned when a document is fully ingested.
const SuccessMessage = "Document successfully ingested into vector store"

// maxBodyBytes bounds the ingest request body. Files are referenced by
// storage path, so requests are small.
const maxBodyBytes = 1 << 20

// ErrMissingIngestionService is returned when no ingestion service is provided.
var ErrMissingIngestionService = errors.New("ingestapi: ingestion service is required")

// IngestResponse is the success body of POST /v1/ingest.
type IngestResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// Server handles ingestion requests over HTTP.
type Server struct {
	mu       sync.Mutex
	ingest   driving.IngestionService
	health   driving.HealthService
	server   *http.Server
	listener net.Listener
}

// NewServer creates an ingestion API server. health may be nil.
func NewServer(ingest driving.IngestionService, health driving.HealthService) (*Server, error) {
	if ingest == nil {
		return nil, ErrMissingIngestionService
	}
	return &Server{ingest: ingest, health: health}, nil
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+IngestPath, s.handleIngest)
	mux.HandleFunc("GET "+IngestPath+"/{document_id}", s.handleStatus)
	mux.HandleFunc("DELETE "+IngestPath+"/{document_id}", s.handleRemove)
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	return mux
}

// Start listens on addr and serves in the background.
// Use Addr to find the chosen port when addr ends in ":0".
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ingest API stopped: %v", err)
		}
	}()
	return nil
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.Start(addr); err != nil {
		return err
	}
	logger.Info("Ingest API listening on http://%s", s.Addr())

	<-ctx.Done()
	return s.Stop()
}

// Stop shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req domain.IngestRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.MIMEType) == "" {
		req.MIMEType = extractors.MIMEFromPath(req.StoragePath)
	}

	result, err := s.ingest.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		Message:    SuccessMessage,
		DocumentID: result.DocumentID,
		ChunkCount: result.ChunkCount,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.ingest.Status(r.Context(), r.PathValue("document_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("document_id")
	n, err := s.ingest.Remove(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Document removed from vector store",
		"document_id":    id,
		"removed_chunks": n,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, domain.HealthReport{Message: "Health service not configured"})
		return
	}
	report := s.health.Check(r.Context())
	code := http.StatusOK
	if !report.Success {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindExtraction:
		return http.StatusUnprocessableEntity
	case domain.KindEmbedding:
		return http.StatusBadGateway
	case domain.KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	payload := domain.ToPayload(err)
	if errors.Is(err, domain.ErrNotFound) && domain.KindOf(err) == domain.KindInternal {
		payload.Message = "Document not found"
	}

	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		logger.ErrorFields(err, "ingest API request failed", nil)
	}
	writeJSON(w, code, payload)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Writing response: %v", err)
	}
}
