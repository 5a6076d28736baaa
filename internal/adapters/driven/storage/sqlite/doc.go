// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - VectorBackend: collections of embedded chunks with exact cosine search
//   - IngestionStatusStore: per-document ingestion status
//
// # Schema
//
// The schema lives in schema/ as numbered .up.sql and .down.sql pairs,
// embedded into the binary and applied in order on open.
//
// # Data Location
//
// By default, the database is stored at ~/.contextkb/data/contextkb.db
//
// # Concurrency
//
// The ingesting and querying processes may open the same file. The store
// runs SQLite in WAL mode with a busy timeout, and each upsert runs in one
// transaction so readers never see a partially written document.
package sqlite
