package driven

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// VectorBackend stores embedded chunks in named collections and answers
// nearest-neighbour queries. Distances are cosine distances, 0 = identical.
//
// Backends must be safe to open from two processes at once (the ingesting
// side and the querying side) and must report failures as store errors
// that distinguish an unreachable store from a missing collection.
type VectorBackend interface {
	// Name identifies the backend for logs and health reports.
	Name() string

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	// CreateCollection creates the collection if absent and returns it.
	// An existing collection is returned with its stored contract.
	CreateCollection(ctx context.Context, contract domain.CollectionContract) (*domain.Collection, error)

	// GetCollection returns an existing collection, or a collection-missing
	// store error when it has never been created.
	GetCollection(ctx context.Context, name string) (*domain.Collection, error)

	// Upsert writes all records or none. Records with an existing ID replace it.
	Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error

	// Search returns up to k matches in ascending distance order.
	Search(ctx context.Context, collection string, vector []float32, k int, filter *domain.MetadataFilter) ([]domain.VectorMatch, error)

	// Count returns the number of stored records.
	Count(ctx context.Context, collection string) (int, error)

	// DeleteDocument removes every record tagged with the document ID
	// and returns how many were removed.
	DeleteDocument(ctx context.Context, collection, documentID string) (int, error)

	// Close releases resources.
	Close() error
}
