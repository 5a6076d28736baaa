package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/logger"
)

const (
	// Name is the MCP implementation name announced to clients.
	Name = "contextual-kb-server"

	// Version is the MCP server version.
	Version = "1.0.0"

	// HealthName identifies this server in /health responses.
	HealthName = "contextual-kb-mcp-server"

	// EndpointPath serves streamable HTTP MCP requests.
	EndpointPath = "/mcp"

	// HealthPath serves the JSON health report.
	HealthPath = "/health"
)

// healthTimeout bounds the store checks behind /health.
const healthTimeout = 10 * time.Second

// Server is the knowledge base MCP server.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    Name,
		Version: Version,
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(impl, nil),
	}

	s.registerTools()
	s.registerResources()

	logger.Debug("MCP server %s v%s: registered tool %s", Name, Version, QueryToolName)
	return s, nil
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the HTTP handler serving the MCP endpoint and /health.
func (s *Server) Handler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle(EndpointPath, mcpHandler)
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	return mux
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// CheckConnection logs whether the store is reachable and how many chunks
// the collection holds. Failures are warnings: the server still starts.
func (s *Server) CheckConnection(ctx context.Context) domain.HealthReport {
	report := s.health(ctx)
	if report.Success {
		count := 0
		if report.CollectionCount != nil {
			count = *report.CollectionCount
		}
		logger.Info("Connected to %s: %d chunks in knowledge base", report.Backend, count)
	} else {
		logger.Warn("%s", report.Message)
		logger.Warn("Make sure the vector store is running and documents have been ingested")
	}
	return report
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Server  string              `json:"server"`
	Version string              `json:"version"`
	Store   domain.HealthReport `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Server:  HealthName,
		Version: Version,
		Store:   s.health(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Debug("Writing health response: %v", err)
	}
}

func (s *Server) health(ctx context.Context) domain.HealthReport {
	if s.ports.Health == nil {
		return domain.HealthReport{Message: "Health service not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return s.ports.Health.Check(ctx)
}
