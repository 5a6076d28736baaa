package driving

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// QueryService answers semantic queries against the collection.
type QueryService interface {
	// Query validates the request, searches the collection and returns
	// results ordered by descending relevance.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)
}
