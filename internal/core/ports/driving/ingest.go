package driving

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// StageObserver receives ingestion state machine transitions.
type StageObserver func(domain.StageEvent)

// IngestionService turns stored files into queryable chunks.
type IngestionService interface {
	// Ingest runs the full pipeline for one document. On failure the
	// document's status stays pending and the error carries its kind.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)

	// Status returns the recorded ingestion status of a document.
	Status(ctx context.Context, documentID string) (*domain.DocumentStatus, error)

	// Remove deletes every stored chunk of a document and its status.
	Remove(ctx context.Context, documentID string) (int, error)

	// SupportedMIMETypes returns the media types that can be ingested.
	SupportedMIMETypes() []string
}
