// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	geminiembed "github.com/custodia-labs/contextkb/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/contextkb/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/contextkb/internal/adapters/driven/embedding/openai"
	anthropicvision "github.com/custodia-labs/contextkb/internal/adapters/driven/vision/anthropic"
	geminivision "github.com/custodia-labs/contextkb/internal/adapters/driven/vision/gemini"
	openaivision "github.com/custodia-labs/contextkb/internal/adapters/driven/vision/openai"
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// anthropicRetries is the SDK retry count for vision calls.
const anthropicRetries = 2

// CreateEmbeddingService creates the embedding service selected by settings,
// throttled to settings.RequestsPerSecond.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider is not configured", domain.ErrEmbeddingUnavailable)
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderGemini:
		svc, err = geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
			Timeout:    settings.Timeout,
		})

	case domain.AIProviderOpenAI:
		svc, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
			Timeout:    settings.Timeout,
		})

	case domain.AIProviderOllama:
		svc = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
			Timeout:    settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("%w: %s does not support embeddings", domain.ErrUnsupportedType, settings.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: settings.RequestsPerSecond, BurstSize: 1})
	return WithEmbeddingRateLimit(svc, limiter), nil
}

// CreateVisionModel creates the vision model selected by settings,
// throttled to settings.RequestsPerSecond.
func CreateVisionModel(ctx context.Context, settings *domain.VisionSettings) (driven.VisionModel, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: vision provider is not configured", domain.ErrVisionUnavailable)
	}

	var (
		model driven.VisionModel
		err   error
	)
	switch settings.Provider {
	case domain.AIProviderGemini:
		model, err = geminivision.New(ctx, geminivision.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderAnthropic:
		model, err = anthropicvision.New(anthropicvision.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			MaxRetries: anthropicRetries,
		})

	case domain.AIProviderOpenAI, domain.AIProviderOpenRouter:
		baseURL := settings.BaseURL
		if baseURL == "" && settings.Provider == domain.AIProviderOpenRouter {
			baseURL = openaivision.OpenRouterBaseURL
		}
		model, err = openaivision.New(openaivision.Config{
			APIKey:  settings.APIKey,
			BaseURL: baseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("%w: %s does not support vision", domain.ErrUnsupportedType, settings.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVisionUnavailable, err)
	}

	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: settings.RequestsPerSecond, BurstSize: 1})
	return WithVisionRateLimit(model, limiter), nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, err
	}

	if err := pingEmbedding(ctx, svc); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

// ValidateEmbeddingConfig creates a service from settings, pings it and closes it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return err
	}
	defer svc.Close()
	return pingEmbedding(ctx, svc)
}

func pingEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}
