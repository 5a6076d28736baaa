package driven

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// PostProcessor is one stage between extraction and embedding. The
// first stage receives nil chunks and produces them from doc; later
// stages rewrite the chunks they are given.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, doc *domain.ExtractedDocument, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// ProcessorHook observes the output of each stage.
type ProcessorHook func(stage string, chunks []domain.Chunk)

// PostProcessorPipeline runs stages in order.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.ExtractedDocument) ([]domain.Chunk, error)

	// ProcessWithHook calls hook after every stage. A nil hook is allowed.
	ProcessWithHook(ctx context.Context, doc *domain.ExtractedDocument, hook ProcessorHook) ([]domain.Chunk, error)
}
