package domain

import (
	"fmt"
	"time"
)

// DefaultCollectionName is shared by the ingesting and querying processes.
const DefaultCollectionName = "contextual_kb_documents"

// CollectionContract is the versioned agreement between the ingesting
// and querying processes. A collection opened with a different model or
// dimensionality than it was created with must fail fast.
type CollectionContract struct {
	Name           string `json:"name"`
	EmbeddingModel string `json:"embedding_model"`
	Dimensions     int    `json:"dimensions"`
}

// Validate checks that the contract is complete.
func (c CollectionContract) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidInput)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding model is required", ErrInvalidInput)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidInput)
	}
	return nil
}

// Check compares a stored contract against the expected one and
// returns a contract-mismatch store error describing any drift.
// Fields the store never recorded are not compared.
func (c CollectionContract) Check(stored CollectionContract) error {
	if stored.EmbeddingModel != "" && stored.EmbeddingModel != c.EmbeddingModel {
		return NewStoreError(StoreContractMismatch, fmt.Sprintf(
			"Collection %q was created with embedding model %q but %q is configured",
			c.Name, stored.EmbeddingModel, c.EmbeddingModel), nil)
	}
	if stored.Dimensions > 0 && stored.Dimensions != c.Dimensions {
		return NewStoreError(StoreContractMismatch, fmt.Sprintf(
			"Collection %q stores %d-dimensional vectors but %d is configured",
			c.Name, stored.Dimensions, c.Dimensions), nil)
	}
	return nil
}

// Collection describes an opened collection.
type Collection struct {
	Contract  CollectionContract
	CreatedAt time.Time
}

// HealthReport is the read-only diagnostic view of the vector store.
type HealthReport struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	CollectionCount *int   `json:"collectionCount,omitempty"`
	Collection      string `json:"collection,omitempty"`
	Backend         string `json:"backend,omitempty"`
}
