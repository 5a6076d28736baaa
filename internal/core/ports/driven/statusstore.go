package driven

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// IngestionStatusStore records the externally visible ingestion status of
// documents. The document collaborator owns this state; the core only
// moves a document to ingested after a fully successful pipeline run.
type IngestionStatusStore interface {
	// SetStatus records the status of a document.
	SetStatus(ctx context.Context, status domain.DocumentStatus) error

	// GetStatus returns the status of a document, or domain.ErrNotFound.
	GetStatus(ctx context.Context, documentID string) (*domain.DocumentStatus, error)

	// DeleteStatus removes the status of a document.
	DeleteStatus(ctx context.Context, documentID string) error
}
