package mcp

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	resp *domain.QueryResponse
	err  error
	last domain.QueryRequest
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &domain.QueryResponse{Query: req.Query, Results: []domain.QueryResult{}}, nil
}

// mockHealthService is a mock implementation of driving.HealthService.
type mockHealthService struct {
	report domain.HealthReport
}

func (m *mockHealthService) Check(_ context.Context) domain.HealthReport {
	return m.report
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func sampleResponse() *domain.QueryResponse {
	return &domain.QueryResponse{
		Query:       "what is the refund policy",
		ResultCount: 1,
		Results: []domain.QueryResult{{
			Text: "Refunds are issued within 30 days.",
			Metadata: map[string]any{
				"document_id": "doc-1",
				"filename":    "policy.pdf",
				"user_id":     "u1",
				"project_id":  "p1",
				"page":        int64(2),
			},
			RelevanceScore: 0.82,
		}},
	}
}
