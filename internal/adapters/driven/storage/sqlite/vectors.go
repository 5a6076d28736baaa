package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/contextkb/internal/adapters/driven/storage/vectormath"
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// BackendName identifies this backend in logs and health reports.
const BackendName = "sqlite"

// vectorBackend implements driven.VectorBackend with exact cosine search.
type vectorBackend struct {
	store *Store
}

var _ driven.VectorBackend = (*vectorBackend)(nil)

func (b *vectorBackend) Name() string {
	return BackendName
}

// Ping checks the database answers.
func (b *vectorBackend) Ping(ctx context.Context) error {
	if err := b.store.db.PingContext(ctx); err != nil {
		return unreachable(err)
	}
	return nil
}

// CreateCollection creates the collection if absent and returns the stored row.
func (b *vectorBackend) CreateCollection(ctx context.Context, contract domain.CollectionContract) (*domain.Collection, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}

	_, err := b.store.db.ExecContext(ctx, `
		INSERT INTO collections (name, embedding_model, dimensions, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, contract.Name, contract.EmbeddingModel, contract.Dimensions, time.Now().UTC())
	if err != nil {
		return nil, rejected("collection create", err)
	}

	return b.GetCollection(ctx, contract.Name)
}

// GetCollection returns the stored contract of a collection.
func (b *vectorBackend) GetCollection(ctx context.Context, name string) (*domain.Collection, error) {
	row := b.store.db.QueryRowContext(ctx, `
		SELECT name, embedding_model, dimensions, created_at
		FROM collections WHERE name = ?
	`, name)

	var c domain.Collection
	var createdAt sql.NullTime
	if err := row.Scan(&c.Contract.Name, &c.Contract.EmbeddingModel, &c.Contract.Dimensions, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, missingCollection(name)
		}
		return nil, rejected("collection lookup", err)
	}
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	return &c, nil
}

// Upsert writes all records in one transaction.
func (b *vectorBackend) Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	coll, err := b.GetCollection(ctx, collection)
	if err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Embedding) != coll.Contract.Dimensions {
			return domain.NewStoreError(domain.StoreDimensionMismatch, fmt.Sprintf(
				"Embedding dimension %d does not match collection dimension %d",
				len(r.Embedding), coll.Contract.Dimensions), nil)
		}
	}

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return rejected("upsert", fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (collection, id, document_id, text, embedding, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			text = excluded.text,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return rejected("upsert", fmt.Errorf("preparing statement: %w", err))
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		metadataJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return rejected("upsert", fmt.Errorf("marshalling metadata for %s: %w", r.ID, err))
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Metadata.String(domain.TagDocumentID),
			r.Text, encodeVector(r.Embedding), string(metadataJSON), now); err != nil {
			return rejected("upsert", fmt.Errorf("writing %s: %w", r.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return rejected("upsert", fmt.Errorf("committing: %w", err))
	}
	return nil
}

// Search ranks every record of the collection against vector.
func (b *vectorBackend) Search(
	ctx context.Context,
	collection string,
	vector []float32,
	k int,
	filter *domain.MetadataFilter,
) ([]domain.VectorMatch, error) {
	if _, err := b.GetCollection(ctx, collection); err != nil {
		return nil, err
	}

	rows, err := b.store.db.QueryContext(ctx, `
		SELECT id, text, embedding, metadata FROM vectors WHERE collection = ?
	`, collection)
	if err != nil {
		return nil, rejected("search", err)
	}
	defer rows.Close()

	ranker := vectormath.NewRanker(vector, k)
	for rows.Next() {
		var id, text, metadataJSON string
		var embedding []byte
		if err := rows.Scan(&id, &text, &embedding, &metadataJSON); err != nil {
			return nil, rejected("search", fmt.Errorf("scanning vector: %w", err))
		}
		metadata, err := domain.DecodeMetadata([]byte(metadataJSON))
		if err != nil {
			return nil, rejected("search", err)
		}
		if filter != nil && !metadata.Matches(filter.Field, filter.Value) {
			continue
		}
		ranker.Add(id, text, decodeVector(embedding), metadata)
	}
	if err := rows.Err(); err != nil {
		return nil, rejected("search", err)
	}

	return ranker.Results(), nil
}

// Count returns the number of records in the collection.
func (b *vectorBackend) Count(ctx context.Context, collection string) (int, error) {
	if _, err := b.GetCollection(ctx, collection); err != nil {
		return 0, err
	}

	var n int
	row := b.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors WHERE collection = ?", collection)
	if err := row.Scan(&n); err != nil {
		return 0, rejected("count", err)
	}
	return n, nil
}

// DeleteDocument removes every record of one document.
func (b *vectorBackend) DeleteDocument(ctx context.Context, collection, documentID string) (int, error) {
	if _, err := b.GetCollection(ctx, collection); err != nil {
		return 0, err
	}

	result, err := b.store.db.ExecContext(ctx,
		"DELETE FROM vectors WHERE collection = ? AND document_id = ?", collection, documentID)
	if err != nil {
		return 0, rejected("delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, rejected("delete", err)
	}
	return int(n), nil
}

// Close is a no-op; the owning Store closes the database.
func (b *vectorBackend) Close() error {
	return nil
}

func missingCollection(name string) error {
	return domain.NewStoreError(domain.StoreCollectionMissing,
		fmt.Sprintf("Collection %q does not exist. Ingest a document first.", name), nil)
}
