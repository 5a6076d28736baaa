package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or vision.
type AIProvider string

// Available AI providers.
const (
	// AIProviderGemini is the Google Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderOpenRouter is the OpenAI-compatible OpenRouter API.
	AIProviderOpenRouter AIProvider = "openrouter"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGemini, AIProviderOpenAI, AIProviderOpenRouter, AIProviderAnthropic, AIProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p.IsValid() && p != AIProviderOllama
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// SupportsEmbedding returns true if the provider can embed text.
func (p AIProvider) SupportsEmbedding() bool {
	return p == AIProviderGemini || p == AIProviderOpenAI || p == AIProviderOllama
}

// SupportsVision returns true if the provider can transcribe images.
func (p AIProvider) SupportsVision() bool {
	return p == AIProviderGemini || p == AIProviderOpenAI || p == AIProviderOpenRouter || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderOpenRouter:
		return "OpenRouter (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// StoreBackend identifies a vector store implementation.
type StoreBackend string

// Available store backends.
const (
	// StoreBackendSQLite is a local SQLite database file.
	StoreBackendSQLite StoreBackend = "sqlite"

	// StoreBackendPostgres is PostgreSQL with the pgvector extension.
	StoreBackendPostgres StoreBackend = "postgres"

	// StoreBackendChroma is a ChromaDB server.
	StoreBackendChroma StoreBackend = "chroma"

	// StoreBackendMemory is an in-process store, lost on exit.
	StoreBackendMemory StoreBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendSQLite, StoreBackendPostgres, StoreBackendChroma, StoreBackendMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StoreBackend) String() string {
	return string(b)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// Dimensions is the fixed vector length the model produces.
	Dimensions int

	// BaseURL is the API endpoint (Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Timeout bounds each embedding call.
	Timeout time.Duration

	// RequestsPerSecond limits calls to the provider. Zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.SupportsEmbedding() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return e.Model != "" && e.Dimensions > 0
}

// VisionSettings holds vision model configuration for image transcription.
type VisionSettings struct {
	// Provider is the vision model provider.
	Provider AIProvider

	// Model is the multimodal model name.
	Model string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// APIKey is the API key.
	APIKey string

	// Timeout bounds each transcription call.
	Timeout time.Duration

	// RequestsPerSecond limits calls to the provider. Zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the vision model is set up.
func (v VisionSettings) IsConfigured() bool {
	if !v.Provider.SupportsVision() {
		return false
	}
	return v.APIKey != "" && v.Model != ""
}

// StoreSettings holds vector store configuration.
type StoreSettings struct {
	// Backend selects the store implementation.
	Backend StoreBackend

	// DataDir holds the SQLite database file.
	DataDir string

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// ChromaURL is the ChromaDB server address.
	ChromaURL string

	// Timeout bounds each store call.
	Timeout time.Duration
}

// ChunkerSettings holds chunking parameters.
type ChunkerSettings struct {
	// Size is the window size in characters.
	Size int

	// Overlap is the number of characters shared by consecutive windows.
	Overlap int
}

// QuerySettings holds query behaviour configuration.
type QuerySettings struct {
	// ProjectFilterField is the metadata field matched by project filters.
	ProjectFilterField string
}

// ServerSettings holds listener configuration.
type ServerSettings struct {
	// IngestAddr is the ingest HTTP API listen address.
	IngestAddr string

	// MCPPort is the MCP HTTP port. Zero selects stdio.
	MCPPort int
}

// Settings holds all application settings.
type Settings struct {
	// Collection is the collection name shared by both processes.
	Collection string

	Embedding EmbeddingSettings
	Vision    VisionSettings
	Store     StoreSettings
	Chunker   ChunkerSettings
	Query     QuerySettings
	Server    ServerSettings
}

// DefaultSettings returns settings with sensible defaults.
// API keys are left empty and must come from the environment.
func DefaultSettings() Settings {
	return Settings{
		Collection: DefaultCollectionName,
		Embedding: EmbeddingSettings{
			Provider:          AIProviderGemini,
			Model:             "text-embedding-004",
			Dimensions:        768,
			Timeout:           60 * time.Second,
			RequestsPerSecond: 5,
		},
		Vision: VisionSettings{
			Provider:          AIProviderOpenRouter,
			Model:             "mistralai/mistral-small-3.2-24b-instruct:free",
			Timeout:           120 * time.Second,
			RequestsPerSecond: 1,
		},
		Store: StoreSettings{
			Backend:   StoreBackendSQLite,
			ChromaURL: "http://localhost:8000",
			Timeout:   30 * time.Second,
		},
		Chunker: ChunkerSettings{
			Size:    1000,
			Overlap: 200,
		},
		Query: QuerySettings{
			ProjectFilterField: TagProjectID,
		},
		Server: ServerSettings{
			IngestAddr: ":8080",
			MCPPort:    3000,
		},
	}
}

// Contract returns the collection contract implied by these settings.
func (s Settings) Contract() CollectionContract {
	return CollectionContract{
		Name:           s.Collection,
		EmbeddingModel: s.Embedding.Model,
		Dimensions:     s.Embedding.Dimensions,
	}
}

// Validate checks settings that must hold before the process starts.
// Violations are configuration errors, not runtime failures.
func (s Settings) Validate() error {
	if err := s.Contract().Validate(); err != nil {
		return err
	}
	if s.Chunker.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidInput)
	}
	if s.Chunker.Overlap < 0 || s.Chunker.Size <= s.Chunker.Overlap {
		return fmt.Errorf("%w: chunk size (%d) must be greater than overlap (%d)",
			ErrInvalidInput, s.Chunker.Size, s.Chunker.Overlap)
	}
	if !s.Store.Backend.IsValid() {
		return fmt.Errorf("%w: store backend %q", ErrUnsupportedType, s.Store.Backend)
	}
	if s.Embedding.Provider != "" && !s.Embedding.Provider.SupportsEmbedding() {
		return fmt.Errorf("%w: embedding provider %q", ErrUnsupportedType, s.Embedding.Provider)
	}
	if s.Vision.Provider != "" && !s.Vision.Provider.SupportsVision() {
		return fmt.Errorf("%w: vision provider %q", ErrUnsupportedType, s.Vision.Provider)
	}
	if s.Query.ProjectFilterField == "" {
		return fmt.Errorf("%w: project filter field is required", ErrInvalidInput)
	}
	return nil
}
