package driving

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// HealthService reports whether the vector store is usable.
type HealthService interface {
	// Check reports store reachability, collection presence and chunk count.
	// It never returns an error; failures are described in the report.
	Check(ctx context.Context) domain.HealthReport
}
