package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// CheckedEmbedder wraps an EmbeddingService and rejects malformed
// provider output. A short batch or a vector of the wrong length is an
// embedding error; partial or zero vectors never reach the store.
type CheckedEmbedder struct {
	svc        driven.EmbeddingService
	dimensions int
}

// NewCheckedEmbedder wraps svc. Vectors must have exactly dimensions
// elements; zero uses the service's own dimensionality.
func NewCheckedEmbedder(svc driven.EmbeddingService, dimensions int) *CheckedEmbedder {
	if dimensions <= 0 && svc != nil {
		dimensions = svc.Dimensions()
	}
	return &CheckedEmbedder{svc: svc, dimensions: dimensions}
}

// Dimensions returns the enforced vector length.
func (e *CheckedEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the wrapped model name.
func (e *CheckedEmbedder) ModelName() string {
	if e.svc == nil {
		return ""
	}
	return e.svc.ModelName()
}

// EmbedBatch embeds every text in one provider call, one vector per text.
func (e *CheckedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.svc == nil {
		return nil, domain.NewEmbeddingError("Embedding service is not configured", domain.ErrEmbeddingUnavailable)
	}

	vectors, err := e.svc.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, embeddingFailure(err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.NewEmbeddingError(fmt.Sprintf(
			"Embedding provider returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	for i, v := range vectors {
		if err := e.check(i, v); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a search query. Providers with a distinct query
// mode (driven.QueryEmbedder) use it; others fall back to Embed.
func (e *CheckedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.svc == nil {
		return nil, domain.NewEmbeddingError("Embedding service is not configured", domain.ErrEmbeddingUnavailable)
	}

	var (
		vector []float32
		err    error
	)
	if qe, ok := e.svc.(driven.QueryEmbedder); ok {
		vector, err = qe.EmbedQuery(ctx, text)
	} else {
		vector, err = e.svc.Embed(ctx, text)
	}
	if err != nil {
		return nil, embeddingFailure(err)
	}
	if err := e.check(0, vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (e *CheckedEmbedder) check(i int, v []float32) error {
	if len(v) == 0 {
		return domain.NewEmbeddingError(fmt.Sprintf("Embedding provider returned an empty vector for text %d", i), nil)
	}
	if len(v) != e.dimensions {
		return domain.NewEmbeddingError(fmt.Sprintf(
			"Embedding provider returned %d dimensions for text %d, expected %d", len(v), i, e.dimensions), nil)
	}
	return nil
}

func embeddingFailure(err error) error {
	var classified *domain.Error
	if errors.As(err, &classified) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewEmbeddingError("Embedding request timed out", err)
	case errors.Is(err, domain.ErrRateLimited):
		return domain.NewEmbeddingError("Embedding provider rate limit exceeded", err)
	default:
		return domain.NewEmbeddingError("Embedding request failed", err)
	}
}
