package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// statusStore implements driven.IngestionStatusStore.
type statusStore struct {
	store *Store
}

var _ driven.IngestionStatusStore = (*statusStore)(nil)

// SetStatus stores or updates the status of a document.
func (s *statusStore) SetStatus(ctx context.Context, status domain.DocumentStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_status (document_id, status, chunk_count, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`, status.DocumentID, string(status.Status), status.ChunkCount, status.LastError, status.UpdatedAt)
	if err != nil {
		return rejected("status update", err)
	}
	return nil
}

// GetStatus retrieves the status of a document.
func (s *statusStore) GetStatus(ctx context.Context, documentID string) (*domain.DocumentStatus, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, status, chunk_count, last_error, updated_at
		FROM ingestion_status WHERE document_id = ?
	`, documentID)

	var status domain.DocumentStatus
	var state string
	var updatedAt sql.NullTime
	if err := row.Scan(&status.DocumentID, &state, &status.ChunkCount, &status.LastError, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, rejected("status lookup", err)
	}
	status.Status = domain.IngestionStatus(state)
	if updatedAt.Valid {
		status.UpdatedAt = updatedAt.Time
	}
	return &status, nil
}

// DeleteStatus removes the status of a document.
func (s *statusStore) DeleteStatus(ctx context.Context, documentID string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM ingestion_status WHERE document_id = ?", documentID); err != nil {
		return rejected("status delete", err)
	}
	return nil
}
