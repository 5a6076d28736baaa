package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for knowledge base resources.
	uriScheme = "contextkb://"

	// HealthResourceURI exposes the store health report.
	HealthResourceURI = uriScheme + "health"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Health == nil {
		return
	}
	s.server.AddResource(&mcp.Resource{
		URI:         HealthResourceURI,
		Name:        "health",
		Description: "Vector store reachability and knowledge base chunk count",
		MIMEType:    "application/json",
	}, s.handleHealthResource)
}

// handleHealthResource returns the current health report.
func (s *Server) handleHealthResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	data, err := json.Marshal(s.health(ctx))
	if err != nil {
		return nil, fmt.Errorf("marshalling health report: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
