package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
)

// Ensure HealthService implements the interface.
var _ driving.HealthService = (*HealthService)(nil)

// HealthService reports whether the store is reachable and the
// collection exists. It is an operator diagnostic, not part of the pipeline.
type HealthService struct {
	gateway *VectorGateway
}

// NewHealthService creates a health service.
func NewHealthService(gateway *VectorGateway) *HealthService {
	return &HealthService{gateway: gateway}
}

// Check reports store reachability, collection presence and chunk count.
func (s *HealthService) Check(ctx context.Context) domain.HealthReport {
	report := domain.HealthReport{
		Collection: s.gateway.Contract().Name,
		Backend:    s.gateway.Backend(),
	}

	if err := s.gateway.Ping(ctx); err != nil {
		report.Message = fmt.Sprintf("Failed to connect to %s vector store: %s", report.Backend, domain.PublicMessage(err))
		return report
	}

	count, err := s.gateway.Count(ctx)
	if err != nil {
		report.Message = domain.PublicMessage(err)
		return report
	}

	report.Success = true
	report.Message = fmt.Sprintf("Successfully connected to %s vector store", report.Backend)
	report.CollectionCount = &count
	return report
}
