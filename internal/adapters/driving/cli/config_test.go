package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contextkb/internal/adapters/driven/config/file"
)

// setupConfig points the config commands at a TOML file in a temp dir.
func setupConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "contextkb.toml")
	original := bootstrap
	SetBootstrap(Bootstrap{
		Config: func(p string) (ConfigEditor, error) {
			if p == "" {
				p = path
			}
			return file.NewConfigStoreAt(p)
		},
	})
	t.Cleanup(func() { SetBootstrap(original) })
	return path
}

func TestConfigCmd_Path(t *testing.T) {
	path := setupConfig(t)

	out, err := execute(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, path)
}

func TestConfigCmd_PathHonoursFlag(t *testing.T) {
	setupConfig(t)
	other := filepath.Join(t.TempDir(), "other.toml")

	out, err := execute(t, "--config", other, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, other)
}

func TestConfigCmd_SetGet(t *testing.T) {
	path := setupConfig(t)

	_, err := execute(t, "config", "set", "chunker.chunk_size", "1500")
	require.NoError(t, err)
	_, err = execute(t, "config", "set", "embedding.provider", "ollama")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunk_size = 1500")

	out, err := execute(t, "config", "get", "embedding.provider")
	require.NoError(t, err)
	assert.Equal(t, "ollama\n", out)
}

func TestConfigCmd_GetMissing(t *testing.T) {
	setupConfig(t)

	_, err := execute(t, "config", "get", "nope.key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "nope.key" is not set`)
}

func TestConfigCmd_ListMasksKeys(t *testing.T) {
	setupConfig(t)

	_, err := execute(t, "config", "set", "embedding.api_key", "sk-1234567890abcdef")
	require.NoError(t, err)

	out, err := execute(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "embedding.api_key = sk-1...cdef")
	assert.NotContains(t, out, "567890")
}

func TestConfigCmd_ListEmpty(t *testing.T) {
	setupConfig(t)

	out, err := execute(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No values set")
}

func TestConfigCmd_NotAvailable(t *testing.T) {
	original := bootstrap
	SetBootstrap(Bootstrap{})
	defer SetBootstrap(original)

	_, err := execute(t, "config", "path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration not available")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(42), parseValue("42"))
	assert.Equal(t, 0.25, parseValue("0.25"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "30s", parseValue("30s"))
	assert.Equal(t, "ollama", parseValue("ollama"))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcd...wxyz", maskAPIKey("abcdefghijklmnopqrstuvwxyz"))
}

func TestDisplayValue(t *testing.T) {
	assert.Equal(t, "1500", displayValue("chunker.chunk_size", int64(1500)))
	assert.Equal(t, "****", displayValue("vision.api_key", "secret"))
}
