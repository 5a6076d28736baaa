// Package app loads settings and wires adapters into the core services.
// Both executables (contextkb and contextkb-mcp) build their services
// here from the same settings, so they agree on the collection contract.
package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// Environment variables.
const (
	EnvConfig           = "CONTEXTKB_CONFIG"
	EnvDataDir          = "CONTEXTKB_DATA_DIR"
	EnvDatabaseURL      = "CONTEXTKB_DATABASE_URL"
	EnvStoreBackend     = "CONTEXTKB_STORE_BACKEND"
	EnvGoogleAPIKey     = "GOOGLE_API_KEY"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"
	EnvAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	EnvChromaURL        = "CHROMADB_URL"
	EnvChromaCollection = "CHROMADB_COLLECTION_NAME"
	EnvMCPPort          = "MCP_PORT"
)

// Configuration keys, in dot notation.
const (
	KeyCollectionName     = "collection.name"
	KeyEmbeddingProvider  = "embedding.provider"
	KeyEmbeddingModel     = "embedding.model"
	KeyEmbeddingDims      = "embedding.dimensions"
	KeyEmbeddingBaseURL   = "embedding.base_url"
	KeyEmbeddingAPIKey    = "embedding.api_key"
	KeyEmbeddingTimeout   = "embedding.timeout"
	KeyEmbeddingRate      = "embedding.requests_per_second"
	KeyVisionProvider     = "vision.provider"
	KeyVisionModel        = "vision.model"
	KeyVisionBaseURL      = "vision.base_url"
	KeyVisionAPIKey       = "vision.api_key"
	KeyVisionTimeout      = "vision.timeout"
	KeyVisionRate         = "vision.requests_per_second"
	KeyStoreBackend       = "store.backend"
	KeyStoreDataDir       = "store.data_dir"
	KeyStoreDatabaseURL   = "store.database_url"
	KeyStoreChromaURL     = "store.chroma_url"
	KeyStoreTimeout       = "store.timeout"
	KeyChunkSize          = "chunker.chunk_size"
	KeyChunkOverlap       = "chunker.overlap"
	KeyProjectFilterField = "query.project_filter_field"
	KeyIngestAddr         = "server.ingest_addr"
	KeyMCPPort            = "server.mcp_port"
	KeyPromptsDir         = "prompts.dir"
)

// DotEnvFiles are loaded, when present, before settings are read.
// Variables already set in the environment are never overwritten.
var DotEnvFiles = []string{".env", "../.env"}

// LoadDotEnv loads the given .env files, skipping missing ones.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			logger.Debug("Loaded environment from %s", p)
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("load %s: %w", p, err)
	}
	return nil
}

// LoadSettings builds settings from defaults, then the config store, then
// the environment. getenv is os.Getenv outside tests.
func LoadSettings(store driven.ConfigStore, getenv func(string) string) (domain.Settings, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	s := domain.DefaultSettings()
	if store != nil {
		applyConfig(&s, store)
	}
	if err := applyEnv(&s, getenv); err != nil {
		return s, err
	}

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func applyConfig(s *domain.Settings, c driven.ConfigStore) {
	setString(&s.Collection, c.GetString(KeyCollectionName))

	if p := c.GetString(KeyEmbeddingProvider); p != "" {
		s.Embedding.Provider = domain.AIProvider(strings.ToLower(p))
	}
	setString(&s.Embedding.Model, c.GetString(KeyEmbeddingModel))
	setInt(&s.Embedding.Dimensions, c.GetInt(KeyEmbeddingDims))
	setString(&s.Embedding.BaseURL, c.GetString(KeyEmbeddingBaseURL))
	setString(&s.Embedding.APIKey, c.GetString(KeyEmbeddingAPIKey))
	if d := c.GetDuration(KeyEmbeddingTimeout); d > 0 {
		s.Embedding.Timeout = d
	}
	if _, ok := c.Get(KeyEmbeddingRate); ok {
		s.Embedding.RequestsPerSecond = c.GetFloat(KeyEmbeddingRate)
	}

	if p := c.GetString(KeyVisionProvider); p != "" {
		s.Vision.Provider = domain.AIProvider(strings.ToLower(p))
	}
	setString(&s.Vision.Model, c.GetString(KeyVisionModel))
	setString(&s.Vision.BaseURL, c.GetString(KeyVisionBaseURL))
	setString(&s.Vision.APIKey, c.GetString(KeyVisionAPIKey))
	if d := c.GetDuration(KeyVisionTimeout); d > 0 {
		s.Vision.Timeout = d
	}
	if _, ok := c.Get(KeyVisionRate); ok {
		s.Vision.RequestsPerSecond = c.GetFloat(KeyVisionRate)
	}

	if b := c.GetString(KeyStoreBackend); b != "" {
		s.Store.Backend = domain.StoreBackend(strings.ToLower(b))
	}
	setString(&s.Store.DataDir, c.GetString(KeyStoreDataDir))
	setString(&s.Store.DatabaseURL, c.GetString(KeyStoreDatabaseURL))
	setString(&s.Store.ChromaURL, c.GetString(KeyStoreChromaURL))
	if d := c.GetDuration(KeyStoreTimeout); d > 0 {
		s.Store.Timeout = d
	}

	setInt(&s.Chunker.Size, c.GetInt(KeyChunkSize))
	if _, ok := c.Get(KeyChunkOverlap); ok {
		s.Chunker.Overlap = c.GetInt(KeyChunkOverlap)
	}

	setString(&s.Query.ProjectFilterField, c.GetString(KeyProjectFilterField))
	setString(&s.Server.IngestAddr, c.GetString(KeyIngestAddr))
	if _, ok := c.Get(KeyMCPPort); ok {
		s.Server.MCPPort = c.GetInt(KeyMCPPort)
	}
}

func applyEnv(s *domain.Settings, getenv func(string) string) error {
	setString(&s.Collection, getenv(EnvChromaCollection))
	setString(&s.Store.ChromaURL, getenv(EnvChromaURL))
	setString(&s.Store.DatabaseURL, getenv(EnvDatabaseURL))
	setString(&s.Store.DataDir, getenv(EnvDataDir))
	if b := getenv(EnvStoreBackend); b != "" {
		s.Store.Backend = domain.StoreBackend(strings.ToLower(b))
	}

	setString(&s.Embedding.APIKey, apiKeyFor(s.Embedding.Provider, getenv))
	setString(&s.Vision.APIKey, apiKeyFor(s.Vision.Provider, getenv))

	if p := getenv(EnvMCPPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("%w: %s=%q is not a valid port", domain.ErrInvalidInput, EnvMCPPort, p)
		}
		s.Server.MCPPort = port
	}
	return nil
}

// apiKeyFor returns the environment key for a provider, or "".
func apiKeyFor(p domain.AIProvider, getenv func(string) string) string {
	switch p {
	case domain.AIProviderGemini:
		return getenv(EnvGoogleAPIKey)
	case domain.AIProviderOpenAI:
		return getenv(EnvOpenAIAPIKey)
	case domain.AIProviderOpenRouter:
		return getenv(EnvOpenRouterAPIKey)
	case domain.AIProviderAnthropic:
		return getenv(EnvAnthropicAPIKey)
	default:
		return ""
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
