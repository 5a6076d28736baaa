package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers semantic queries.
type QueryService struct {
	gateway     *VectorGateway
	filterField string
}

// NewQueryService creates a query service. Project filters match
// filterField (project_id when empty).
func NewQueryService(gateway *VectorGateway, filterField string) *QueryService {
	if filterField == "" {
		filterField = domain.TagProjectID
	}
	return &QueryService{gateway: gateway, filterField: filterField}
}

// Query validates the request before touching the store, then returns
// matches ordered by descending relevance.
func (s *QueryService) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return nil, domain.NewValidationError("Query cannot be empty")
	}

	limit := req.EffectiveLimit()
	if limit < domain.MinQueryLimit || limit > domain.MaxQueryLimit {
		return nil, domain.NewValidationError("Limit must be between %d and %d", domain.MinQueryLimit, domain.MaxQueryLimit)
	}

	var filter *domain.MetadataFilter
	if req.ProjectName != nil {
		project := strings.TrimSpace(*req.ProjectName)
		if project == "" {
			return nil, domain.NewValidationError("Project name cannot be empty if provided")
		}
		filter = &domain.MetadataFilter{Field: s.filterField, Value: project}
	}

	logger.Debug("Query %q limit=%d filter=%v", text, limit, filter)

	matches, err := s.gateway.Query(ctx, text, limit, filter)
	if err != nil {
		classified := domain.Classify("query", err)
		if classified.Kind == domain.KindInternal {
			logger.ErrorFields(classified, "query failed", logger.Fields{"query": text, "limit": limit})
		}
		return nil, classified
	}

	results := make([]domain.QueryResult, len(matches))
	for i, m := range matches {
		results[i] = domain.QueryResult{
			Text:           m.Text,
			Metadata:       resultMetadata(m.Metadata, i),
			RelevanceScore: domain.RelevanceScore(m.Distance),
		}
	}

	return &domain.QueryResponse{
		Query:       req.Query,
		ResultCount: len(results),
		Results:     results,
	}, nil
}

// resultMetadata copies stored metadata and fills the four required
// fields with placeholders when a record lacks them.
func resultMetadata(stored domain.Metadata, index int) map[string]any {
	out := make(map[string]any, len(stored)+4)
	for k, v := range stored {
		out[k] = v
	}

	defaults := map[string]string{
		domain.TagDocumentID: fmt.Sprintf("%s_%d", domain.UnknownValue, index),
		domain.TagFilename:   domain.UnknownFilename,
		domain.TagUserID:     domain.UnknownValue,
		domain.TagProjectID:  domain.UnknownValue,
	}
	for key, placeholder := range defaults {
		if stored.String(key) == "" {
			out[key] = placeholder
		}
	}
	return out
}
