package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// Ensure StatusStore implements the interface.
var _ driven.IngestionStatusStore = (*StatusStore)(nil)

// StatusStore is an in-memory implementation of driven.IngestionStatusStore.
type StatusStore struct {
	mu       sync.RWMutex
	statuses map[string]domain.DocumentStatus
}

// NewStatusStore creates a new in-memory status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{
		statuses: make(map[string]domain.DocumentStatus),
	}
}

// SetStatus stores or updates the status of a document.
func (s *StatusStore) SetStatus(_ context.Context, status domain.DocumentStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.DocumentID] = status
	return nil
}

// GetStatus retrieves the status of a document.
func (s *StatusStore) GetStatus(_ context.Context, documentID string) (*domain.DocumentStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &status, nil
}

// DeleteStatus removes the status of a document.
func (s *StatusStore) DeleteStatus(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, documentID)
	return nil
}
