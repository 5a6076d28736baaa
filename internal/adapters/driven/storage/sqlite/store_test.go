package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

var testContract = domain.CollectionContract{
	Name:           "test_collection",
	EmbeddingModel: "test-model",
	Dimensions:     3,
}

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func record(id, docID, project string, vec ...float32) domain.VectorRecord {
	return domain.VectorRecord{
		ID:        id,
		Text:      "text of " + id,
		Embedding: vec,
		Metadata: domain.Metadata{
			domain.TagDocumentID: docID,
			domain.TagProjectID:  project,
			"page":               int64(1),
		},
	}
}

// ==================== Store Creation Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
	assert.ErrorIs(t, err, domain.ErrStoreUnreachable)
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, DatabaseFile)
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "path", "to", "db")
	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_Migrations(t *testing.T) {
	store := setupTestStore(t)

	var version int
	err := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	for _, table := range []string{"collections", "vectors", "ingestion_status"} {
		var tableExists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&tableExists)
		require.NoError(t, err)
		assert.Equal(t, 1, tableExists, "table %s should exist", table)
	}
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()
	first, err := NewStore(dir)
	require.NoError(t, err)
	_, err = first.VectorBackend().CreateCollection(context.Background(), testContract)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var applied int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)

	coll, err := second.VectorBackend().GetCollection(context.Background(), testContract.Name)
	require.NoError(t, err)
	assert.Equal(t, testContract, coll.Contract)
}

func TestStore_Close(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.Error(t, store.db.Ping())
}

func TestStore_InterfaceGetters(t *testing.T) {
	store := setupTestStore(t)

	assert.NotNil(t, store.VectorBackend())
	assert.NotNil(t, store.StatusStore())
	assert.Equal(t, BackendName, store.VectorBackend().Name())
}

// ==================== Collection Tests ====================

func TestCollection_CreateIsIdempotent(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()
	ctx := context.Background()

	created, err := backend.CreateCollection(ctx, testContract)
	require.NoError(t, err)
	assert.Equal(t, testContract, created.Contract)
	assert.False(t, created.CreatedAt.IsZero())

	// A second create with a different contract returns the stored one.
	drifted := testContract
	drifted.Dimensions = 99
	again, err := backend.CreateCollection(ctx, drifted)
	require.NoError(t, err)
	assert.Equal(t, testContract, again.Contract)
}

func TestCollection_CreateValidates(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()

	_, err := backend.CreateCollection(context.Background(), domain.CollectionContract{Name: "x"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCollection_Missing(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()
	ctx := context.Background()

	_, err := backend.GetCollection(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrCollectionMissing)

	_, err = backend.Search(ctx, "nope", []float32{1, 0, 0}, 5, nil)
	require.ErrorIs(t, err, domain.ErrCollectionMissing)

	_, err = backend.Count(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrCollectionMissing)

	err = backend.Upsert(ctx, "nope", []domain.VectorRecord{record("a", "d", "p", 1, 0, 0)})
	require.ErrorIs(t, err, domain.ErrCollectionMissing)
}

// ==================== Vector Tests ====================

func TestUpsert_AndSearch(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()
	ctx := context.Background()
	_, err := backend.CreateCollection(ctx, testContract)
	require.NoError(t, err)

	err = backend.Upsert(ctx, testContract.Name, []domain.VectorRecord{
		record("a", "doc-1", "p1", 1, 0, 0),
		record("b", "doc-1", "p1", 0, 1, 0),
		record("c", "doc-2", "p2", 0.9, 0.1, 0),
	})
	require.NoError(t, err)

	n, err := backend.Count(ctx, testContract.Name)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := backend.Search(ctx, testContract.Name, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "c", matches[1].ID)
	require.NotNil(t, matches[0].Distance)
	assert.InDelta(t, 0, *matches[0].Distance, 1e-6)
	assert.Equal(t, "text of a", matches[0].Text)
	assert.Equal(t, int64(1), matches[0].Metadata["page"])
	assert.Equal(t, "doc-1", matches[0].Metadata[domain.TagDocumentID])
}

func TestSearch_Filter(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()
	ctx := context.Background()
	_, err := backend.CreateCollection(ctx, testContract)
	require.NoError(t, err)
	require.NoError(t, backend.Upsert(ctx, testContract.Name, []domain.VectorRecord{
		record("a", "doc-1", "p1", 1, 0, 0),
		record("c", "doc-2", "p2", 0.9, 0.1, 0),
	}))

	matches, err := backend.Search(ctx, testContract.Name, []float32{1, 0, 0}, 5,
		&domain.MetadataFilter{Field: domain.TagProjectID, Value: "p2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c", matches[0].ID)

	matches, err = backend.Search(ctx, testContract.Name, []float32{1, 0, 0}, 5,
		&domain.MetadataFilter{Field: domain.TagProjectID, Value: "none"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestUpsert_ReplacesExistingIDs(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()
	ctx := context.Background()
	_, err := backend.CreateCollection(ctx, testContract)
	require.NoError(t, err)

	require.NoError(t, backend.Upsert(ctx, testContract.Name, []domain.VectorRecord{record("a", "doc-1", "p1", 1, 0, 0)}))
	updated := record("a", "doc-1", "p1", 0, 0, 1)
	updated.Text = "new text"
	require.NoError(t, backend.Upsert(ctx, testContract.Name, []domain.VectorRecord{updated}))

	n, err := backend.Count(ctx, testContract.Name)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := backend.Search(ctx, testContract.Name, []float32{0, 0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new text", matches[0].Text)
}

func TestUpsert_DimensionMismatchWritesNothing(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()
	ctx := context.Background()
	_, err := backend.CreateCollection(ctx, testContract)
	require.NoError(t, err)

	err = backend.Upsert(ctx, testContract.Name, []domain.VectorRecord{
		record("a", "doc-1", "p1", 1, 0, 0),
		record("b", "doc-1", "p1", 1, 0),
	})
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	n, err := backend.Count(ctx, testContract.Name)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsert_Empty(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()
	assert.NoError(t, backend.Upsert(context.Background(), "anything", nil))
}

func TestDeleteDocument(t *testing.T) {
	backend := setupTestStore(t).VectorBackend()
	ctx := context.Background()
	_, err := backend.CreateCollection(ctx, testContract)
	require.NoError(t, err)
	require.NoError(t, backend.Upsert(ctx, testContract.Name, []domain.VectorRecord{
		record("a", "doc-1", "p1", 1, 0, 0),
		record("b", "doc-1", "p1", 0, 1, 0),
		record("c", "doc-2", "p2", 0, 0, 1),
	}))

	removed, err := backend.DeleteDocument(ctx, testContract.Name, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = backend.DeleteDocument(ctx, testContract.Name, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, removed)

	n, err := backend.Count(ctx, testContract.Name)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentStoresShareFile(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewStore(dir)
	require.NoError(t, err)
	defer writer.Close()
	reader, err := NewStore(dir)
	require.NoError(t, err)
	defer reader.Close()

	ctx := context.Background()
	_, err = writer.VectorBackend().CreateCollection(ctx, testContract)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			id := string(rune('a' + i))
			assert.NoError(t, writer.VectorBackend().Upsert(ctx, testContract.Name,
				[]domain.VectorRecord{record(id, "doc", "p", 1, float32(i), 0)}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, err := reader.VectorBackend().Search(ctx, testContract.Name, []float32{1, 0, 0}, 5, nil)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	n, err := reader.VectorBackend().Count(ctx, testContract.Name)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

// ==================== Status Tests ====================

func TestStatusStore_Lifecycle(t *testing.T) {
	statuses := setupTestStore(t).StatusStore()
	ctx := context.Background()

	_, err := statuses.GetStatus(ctx, "doc-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, statuses.SetStatus(ctx, domain.DocumentStatus{
		DocumentID: "doc-1",
		Status:     domain.StatusPending,
	}))
	got, err := statuses.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, statuses.SetStatus(ctx, domain.DocumentStatus{
		DocumentID: "doc-1",
		Status:     domain.StatusIngested,
		ChunkCount: 4,
	}))
	got, err = statuses.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIngested, got.Status)
	assert.Equal(t, 4, got.ChunkCount)

	require.NoError(t, statuses.DeleteStatus(ctx, "doc-1"))
	_, err = statuses.GetStatus(ctx, "doc-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusStore_KeepsLastError(t *testing.T) {
	statuses := setupTestStore(t).StatusStore()
	ctx := context.Background()

	require.NoError(t, statuses.SetStatus(ctx, domain.DocumentStatus{
		DocumentID: "doc-2",
		Status:     domain.StatusPending,
		LastError:  "Embedding provider is unavailable",
	}))
	got, err := statuses.GetStatus(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, "Embedding provider is unavailable", got.LastError)
}
