// Package postgres provides a VectorBackend on PostgreSQL with the pgvector extension.
//
// Each collection gets its own table so the vector column can carry the
// collection dimensionality. Collection contracts live in a shared
// registry table. Searches use the pgvector cosine distance operator
// backed by an HNSW index.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// BackendName identifies this backend in logs and health reports.
const BackendName = "postgres"

// tablePrefix namespaces per-collection vector tables.
const tablePrefix = "contextkb_vectors_"

var unsafeTableChars = regexp.MustCompile(`[^a-z0-9_]`)

// Ensure Store implements the interface.
var _ driven.VectorBackend = (*Store)(nil)

// Store is a pgvector-backed vector store.
type Store struct {
	db *sql.DB

	mu            sync.Mutex
	schemaApplied bool
}

// NewStore opens a connection pool for dsn. The database is not contacted
// until the first call, so a process can start while PostgreSQL is down.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: database URL is required", domain.ErrInvalidInput)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, unreachable(fmt.Errorf("open database: %w", err))
	}
	return &Store{db: db}, nil
}

// Name returns the backend name.
func (s *Store) Name() string {
	return BackendName
}

// Ping checks the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unreachable(err)
	}
	return nil
}

// ensureSchema creates the extension and the collection registry once.
func (s *Store) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaApplied {
		return nil
	}

	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS contextkb_collections (
			name TEXT PRIMARY KEY,
			embedding_model TEXT NOT NULL,
			dimensions INTEGER NOT NULL CHECK (dimensions > 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return classify("schema migration", err)
		}
	}
	s.schemaApplied = true
	return nil
}

// CreateCollection registers the collection and creates its vector table.
func (s *Store) CreateCollection(ctx context.Context, contract domain.CollectionContract) (*domain.Collection, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contextkb_collections (name, embedding_model, dimensions)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`, contract.Name, contract.EmbeddingModel, contract.Dimensions)
	if err != nil {
		return nil, classify("collection create", err)
	}

	coll, err := s.GetCollection(ctx, contract.Name)
	if err != nil {
		return nil, err
	}

	table := tableIdentifier(coll.Contract.Name)
	index := pgx.Identifier{"idx_" + tableName(coll.Contract.Name) + "_embedding"}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table, coll.Contract.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`, index, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id)`,
			pgx.Identifier{"idx_" + tableName(coll.Contract.Name) + "_document"}.Sanitize(), table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, classify("collection create", err)
		}
	}
	return coll, nil
}

// GetCollection returns the registered contract of a collection.
func (s *Store) GetCollection(ctx context.Context, name string) (*domain.Collection, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var c domain.Collection
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT name, embedding_model, dimensions, created_at
		FROM contextkb_collections WHERE name = $1
	`, name).Scan(&c.Contract.Name, &c.Contract.EmbeddingModel, &c.Contract.Dimensions, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, missingCollection(name)
		}
		return nil, classify("collection lookup", err)
	}
	c.CreatedAt = createdAt
	return &c, nil
}

// Upsert writes all records in one transaction.
func (s *Store) Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	coll, err := s.GetCollection(ctx, collection)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, content, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`, tableIdentifier(collection))

	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return domain.NewStoreError(domain.StoreRejected, "PostgreSQL store rejected upsert", err)
		}
		if _, err := tx.ExecContext(ctx, query, r.ID, r.Metadata.String(domain.TagDocumentID),
			r.Text, formatEmbedding(r.Embedding), metadata); err != nil {
			return classify("upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("upsert", err)
	}
	return nil
}

// Search returns the k nearest records by cosine distance.
func (s *Store) Search(
	ctx context.Context,
	collection string,
	vector []float32,
	k int,
	filter *domain.MetadataFilter,
) ([]domain.VectorMatch, error) {
	if _, err := s.GetCollection(ctx, collection); err != nil {
		return nil, err
	}

	query, args := searchQuery(collection, vector, k, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("search", err)
	}
	defer rows.Close()

	var matches []domain.VectorMatch
	for rows.Next() {
		var m domain.VectorMatch
		var metadata []byte
		var distance float64
		if err := rows.Scan(&m.ID, &m.Text, &metadata, &distance); err != nil {
			return nil, classify("search", err)
		}
		m.Metadata, err = domain.DecodeMetadata(metadata)
		if err != nil {
			return nil, domain.NewStoreError(domain.StoreRejected, "PostgreSQL store returned invalid metadata", err)
		}
		m.Distance = &distance
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("search", err)
	}
	return matches, nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if _, err := s.GetCollection(ctx, collection); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableIdentifier(collection)).Scan(&n); err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// DeleteDocument removes every record of one document.
func (s *Store) DeleteDocument(ctx context.Context, collection, documentID string) (int, error) {
	if _, err := s.GetCollection(ctx, collection); err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM "+tableIdentifier(collection)+" WHERE document_id = $1", documentID)
	if err != nil {
		return 0, classify("delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, classify("delete", err)
	}
	return int(n), nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// searchQuery builds the nearest-neighbour query for a collection.
func searchQuery(collection string, vector []float32, k int, filter *domain.MetadataFilter) (string, []any) {
	args := []any{formatEmbedding(vector)}
	where := ""
	if filter != nil {
		args = append(args, filter.Field, filter.Value)
		where = "WHERE metadata ->> $2 = $3"
	}
	args = append(args, k)

	query := fmt.Sprintf(`
		SELECT id, content, metadata, embedding <=> $1 AS distance
		FROM %s
		%s
		ORDER BY embedding <=> $1, id
		LIMIT $%d
	`, tableIdentifier(collection), where, len(args))
	return query, args
}

// tableName maps a collection name to a safe, lower-case table name.
func tableName(collection string) string {
	return tablePrefix + unsafeTableChars.ReplaceAllString(strings.ToLower(collection), "_")
}

func tableIdentifier(collection string) string {
	return pgx.Identifier{tableName(collection)}.Sanitize()
}

// formatEmbedding converts a vector to pgvector text format: "[0.1,0.2,0.3]".
func formatEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// classify maps database errors onto store conditions. Errors reported
// by the server are rejections; anything else means it was not reached.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "22000" || strings.Contains(pgErr.Message, "dimensions") {
			return domain.NewStoreError(domain.StoreDimensionMismatch, "PostgreSQL store rejected "+op+": "+pgErr.Message, err)
		}
		return domain.NewStoreError(domain.StoreRejected, "PostgreSQL store rejected "+op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewStoreError(domain.StoreUnreachable, "PostgreSQL store timed out during "+op, err)
	}
	return unreachable(err)
}

func unreachable(err error) error {
	return domain.NewStoreError(domain.StoreUnreachable, "Failed to connect to PostgreSQL", err)
}

func missingCollection(name string) error {
	return domain.NewStoreError(domain.StoreCollectionMissing,
		fmt.Sprintf("Collection %q does not exist. Ingest a document first.", name), nil)
}
