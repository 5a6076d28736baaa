// Package mcp provides the agent-facing MCP (Model Context Protocol) server.
// It exposes semantic search over the knowledge base as the
// query_knowledge_base tool.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
