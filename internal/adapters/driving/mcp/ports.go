package mcp

import (
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Query answers query_knowledge_base calls.
	Query driving.QueryService

	// Health backs the /health endpoint and the health resource.
	// Optional.
	Health driving.HealthService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
