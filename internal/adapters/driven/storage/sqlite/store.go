package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// DatabaseFile is the name of the database file inside the data directory.
const DatabaseFile = "contextkb.db"

// Store is a unified SQLite-based storage that provides access to
// the vector and status store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.contextkb/data/contextkb.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".contextkb", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, unreachable(fmt.Errorf("creating data directory: %w", err))
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL lets the query process read while the ingest process writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, unreachable(fmt.Errorf("opening database: %w", err))
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, unreachable(fmt.Errorf("enabling foreign keys: %w", err))
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(schemaFS); err != nil {
		db.Close()
		return nil, unreachable(fmt.Errorf("running migrations: %w", err))
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// VectorBackend returns a VectorBackend interface backed by this store.
func (s *Store) VectorBackend() driven.VectorBackend {
	return &vectorBackend{store: s}
}

// StatusStore returns an IngestionStatusStore interface backed by this store.
func (s *Store) StatusStore() driven.IngestionStatusStore {
	return &statusStore{store: s}
}

// unreachable wraps an error raised while opening the database.
func unreachable(err error) error {
	return domain.NewStoreError(domain.StoreUnreachable, "SQLite store is unavailable", err)
}

// rejected wraps an error returned by a statement on an open database.
func rejected(op string, err error) error {
	return domain.NewStoreError(domain.StoreRejected, "SQLite store rejected "+op, err)
}
