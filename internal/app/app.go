package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/contextkb/internal/adapters/driven/ai"
	"github.com/custodia-labs/contextkb/internal/adapters/driven/config/file"
	"github.com/custodia-labs/contextkb/internal/adapters/driven/storage/chroma"
	"github.com/custodia-labs/contextkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/contextkb/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/contextkb/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/core/services"
	"github.com/custodia-labs/contextkb/internal/extractors"
	"github.com/custodia-labs/contextkb/internal/extractors/pdf"
	visionextractor "github.com/custodia-labs/contextkb/internal/extractors/vision"
	"github.com/custodia-labs/contextkb/internal/logger"
	"github.com/custodia-labs/contextkb/internal/postprocessors"
)

// Options selects what a process needs.
type Options struct {
	// Ingestion builds the extractors, vision model and chunking pipeline.
	// The query-only MCP server leaves it off.
	Ingestion bool

	// PromptsDir overrides the prompt directory (default ~/.contextkb/prompts).
	PromptsDir string
}

// App holds the constructed services of one process. Clients are created
// once here and passed by reference; nothing is held in package state.
type App struct {
	Settings  domain.Settings
	Gateway   *services.VectorGateway
	Ingestion *services.IngestionService
	Query     *services.QueryService
	Health    *services.HealthService

	closers []func() error
}

// New wires adapters into services according to settings.
func New(ctx context.Context, settings domain.Settings, opts Options) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Settings: settings}

	backend, status, err := a.openStore(settings.Store)
	if err != nil {
		a.Close()
		return nil, err
	}

	emb, err := ai.CreateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedding: %w", err)
	}
	a.closers = append(a.closers, emb.Close)
	if emb.Dimensions() != settings.Embedding.Dimensions {
		logger.Warn("Embedding model %s reports %d dimensions; collection contract uses %d",
			emb.ModelName(), emb.Dimensions(), settings.Embedding.Dimensions)
	}

	embedder := services.NewCheckedEmbedder(emb, settings.Embedding.Dimensions)
	a.Gateway = services.NewVectorGateway(backend, embedder, settings.Contract(), settings.Store.Timeout)
	a.Query = services.NewQueryService(a.Gateway, settings.Query.ProjectFilterField)
	a.Health = services.NewHealthService(a.Gateway)

	if opts.Ingestion {
		registry, err := a.buildExtractors(ctx, settings, opts)
		if err != nil {
			a.Close()
			return nil, err
		}
		pipeline, err := buildPipeline(settings.Chunker)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Ingestion = services.NewIngestionService(registry, pipeline, a.Gateway, status)
	}

	logger.Debug("Collection %q on %s (%s, %d dims)",
		settings.Collection, backend.Name(), settings.Embedding.Model, settings.Embedding.Dimensions)
	return a, nil
}

// Close releases every client in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the vector backend and the status store. SQLite serves
// both from one file; other backends keep status in a local SQLite file,
// except the memory backend which keeps everything in process.
func (a *App) openStore(s domain.StoreSettings) (driven.VectorBackend, driven.IngestionStatusStore, error) {
	switch s.Backend {
	case domain.StoreBackendSQLite:
		st, err := sqlite.NewStore(s.DataDir)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st.VectorBackend(), st.StatusStore(), nil

	case domain.StoreBackendMemory:
		vs := memory.NewVectorStore()
		a.closers = append(a.closers, vs.Close)
		return vs, memory.NewStatusStore(), nil

	case domain.StoreBackendPostgres, domain.StoreBackendChroma:
		var backend driven.VectorBackend
		if s.Backend == domain.StoreBackendPostgres {
			pg, err := postgres.NewStore(s.DatabaseURL)
			if err != nil {
				return nil, nil, err
			}
			backend = pg
		} else {
			backend = chroma.New(chroma.Config{URL: s.ChromaURL, Timeout: s.Timeout})
		}
		a.closers = append(a.closers, backend.Close)

		st, err := sqlite.NewStore(s.DataDir)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, st.Close)
		return backend, st.StatusStore(), nil

	default:
		return nil, nil, fmt.Errorf("%w: store backend %q", domain.ErrUnsupportedType, s.Backend)
	}
}

// buildExtractors registers the PDF extractor and, when a vision model
// is configured, the image extractor. Without a vision model images are
// rejected as unsupported media types.
func (a *App) buildExtractors(ctx context.Context, s domain.Settings, opts Options) (*extractors.Registry, error) {
	registry := extractors.NewRegistry(pdf.New())

	model, err := ai.CreateVisionModel(ctx, &s.Vision)
	if err != nil {
		if errors.Is(err, domain.ErrVisionUnavailable) {
			logger.Warn("Image ingestion disabled: %v", err)
			return registry, nil
		}
		return nil, fmt.Errorf("vision: %w", err)
	}
	a.closers = append(a.closers, model.Close)

	prompts, err := file.NewPromptStore(opts.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}
	instruction, err := prompts.Load(driven.PromptVisionTranscribe)
	if err != nil {
		logger.Warn("Using built-in vision instruction: %v", err)
	}

	registry.Register(visionextractor.New(model, s.Vision.Timeout).WithInstruction(instruction))
	return registry, nil
}

// buildPipeline builds chunker then sanitizer from the processor registry.
func buildPipeline(c domain.ChunkerSettings) (*postprocessors.Pipeline, error) {
	pipeline, err := postprocessors.NewDefaultRegistry().BuildPipeline(postprocessors.ChunkerStage(c))
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	return pipeline, nil
}
