package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// QueryToolName is the name of the knowledge base search tool.
const QueryToolName = "query_knowledge_base"

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Query       string  `json:"query" jsonschema:"The search query or question to find relevant documents"`
	ProjectName *string `json:"project_name,omitempty" jsonschema:"Optional: Filter results to a specific project name"`
	Limit       *int    `json:"limit,omitempty" jsonschema:"Number of results to return (default: 5, max: 20)"`
}

// registerTools registers all tool handlers with the MCP server.
// The output type is left open so failed calls carry only the error payload.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:  QueryToolName,
		Title: "Query Knowledge Base",
		Description: "Search the knowledge base for relevant information using semantic search. " +
			"Returns document chunks with metadata and relevance scores.",
	}, s.handleQuery)
}

// handleQuery handles the query tool invocation. Failures are reported as
// tool results with isError set, never as protocol errors.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, any, error) {
	project := "all"
	if input.ProjectName != nil {
		project = *input.ProjectName
	}
	logger.Info("[Query] %q | Project: %s | Limit: %d",
		input.Query, project, domain.QueryRequest{Limit: input.Limit}.EffectiveLimit())

	resp, err := s.ports.Query.Query(ctx, domain.QueryRequest{
		Query:       input.Query,
		ProjectName: input.ProjectName,
		Limit:       input.Limit,
	})
	if err != nil {
		logger.Warn("[Error] Query failed: %s", domain.PublicMessage(err))
		return errorResult(err), nil, nil
	}

	logger.Info("[Results] Found %d results", resp.ResultCount)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: indentJSON(resp)}},
	}, resp, nil
}

// errorResult renders err as the {error, message} payload.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: indentJSON(domain.ToPayload(err))}},
	}
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return `{"error": true, "message": "Internal error"}`
	}
	return string(data)
}
