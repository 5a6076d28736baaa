// Package memory provides in-process implementations of driven ports.
// State is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/contextkb/internal/adapters/driven/storage/vectormath"
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// BackendName identifies this backend in logs and health reports.
const BackendName = "memory"

// Ensure VectorStore implements the interface.
var _ driven.VectorBackend = (*VectorStore)(nil)

type collection struct {
	info    domain.Collection
	records map[string]domain.VectorRecord
}

// VectorStore is an in-memory implementation of driven.VectorBackend.
type VectorStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		collections: make(map[string]*collection),
	}
}

// Name returns the backend name.
func (s *VectorStore) Name() string {
	return BackendName
}

// Ping always succeeds.
func (s *VectorStore) Ping(_ context.Context) error {
	return nil
}

// CreateCollection creates the collection if absent and returns it.
func (s *VectorStore) CreateCollection(_ context.Context, contract domain.CollectionContract) (*domain.Collection, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[contract.Name]
	if !ok {
		c = &collection{
			info:    domain.Collection{Contract: contract, CreatedAt: time.Now().UTC()},
			records: make(map[string]domain.VectorRecord),
		}
		s.collections[contract.Name] = c
	}
	info := c.info
	return &info, nil
}

// GetCollection returns an existing collection.
func (s *VectorStore) GetCollection(_ context.Context, name string) (*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	info := c.info
	return &info, nil
}

// Upsert writes all records or none.
func (s *VectorStore) Upsert(_ context.Context, name string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(name)
	if err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Embedding) != c.info.Contract.Dimensions {
			return domain.NewStoreError(domain.StoreDimensionMismatch, fmt.Sprintf(
				"Embedding dimension %d does not match collection dimension %d",
				len(r.Embedding), c.info.Contract.Dimensions), nil)
		}
	}
	for _, r := range records {
		stored := r
		stored.Embedding = append([]float32(nil), r.Embedding...)
		stored.Metadata = r.Metadata.Clone()
		c.records[r.ID] = stored
	}
	return nil
}

// Search ranks every record in the collection against vector.
func (s *VectorStore) Search(
	_ context.Context,
	name string,
	vector []float32,
	k int,
	filter *domain.MetadataFilter,
) ([]domain.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	ranker := vectormath.NewRanker(vector, k)
	for _, r := range c.records {
		if filter != nil && !r.Metadata.Matches(filter.Field, filter.Value) {
			continue
		}
		ranker.Add(r.ID, r.Text, r.Embedding, r.Metadata.Clone())
	}
	return ranker.Results(), nil
}

// Count returns the number of records in the collection.
func (s *VectorStore) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return len(c.records), nil
}

// DeleteDocument removes every record tagged with documentID.
func (s *VectorStore) DeleteDocument(_ context.Context, name, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	removed := 0
	for id, r := range c.records {
		if r.Metadata.String(domain.TagDocumentID) == documentID {
			delete(c.records, id)
			removed++
		}
	}
	return removed, nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

// lookup must be called with the lock held.
func (s *VectorStore) lookup(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, domain.NewStoreError(domain.StoreCollectionMissing,
			fmt.Sprintf("Collection %q does not exist. Ingest a document first.", name), nil)
	}
	return c, nil
}
