package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

func TestStatusCmd_Text(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.status = &domain.DocumentStatus{
		DocumentID: "doc-1",
		Status:     domain.StatusPending,
		LastError:  "Failed to generate embeddings",
		UpdatedAt:  time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	out, err := execute(t, "status", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Document: doc-1")
	assert.Contains(t, out, "Status: pending")
	assert.Contains(t, out, "Last error: Failed to generate embeddings")
	assert.Contains(t, out, "Updated: 2026-03-04 05:06:07")
}

func TestStatusCmd_JSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.status = &domain.DocumentStatus{
		DocumentID: "doc-1",
		Status:     domain.StatusIngested,
		ChunkCount: 4,
	}

	out, err := execute(t, "status", "--json", "doc-1")
	require.NoError(t, err)

	var got domain.DocumentStatus
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, domain.StatusIngested, got.Status)
	assert.Equal(t, 4, got.ChunkCount)
}

func TestStatusCmd_NotFound(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.err = domain.ErrNotFound

	_, err := execute(t, "status", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.removed = 3

	out, err := execute(t, "remove", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 3 chunks of doc-1")
}

func TestRemoveCmd_RequiresID(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "remove")
	require.Error(t, err)
}
