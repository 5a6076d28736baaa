package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// DefaultBackoff is how long calls pause after a provider reports a rate limit.
const DefaultBackoff = 5 * time.Second

// RateLimitConfig holds rate limiting configuration for a provider.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
	// Backoff is the pause applied after a rate limit response.
	Backoff time.Duration
}

// RateLimiter throttles calls to an AI provider.
// It uses a token bucket with a shared backoff window after 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	backoff time.Duration
}

// NewRateLimiter creates a rate limiter. A non-positive rate returns nil,
// and a nil limiter never blocks.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		backoff: cfg.Backoff,
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError starts a backoff window.
func (r *RateLimiter) RecordRateLimitError() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(r.backoff)
}

// observe records a backoff if err reports a provider rate limit.
func (r *RateLimiter) observe(err error) {
	if err != nil && errors.Is(err, domain.ErrRateLimited) {
		r.RecordRateLimitError()
	}
}

// rateLimitedEmbedding throttles an embedding service.
type rateLimitedEmbedding struct {
	driven.EmbeddingService
	limiter *RateLimiter
}

// WithEmbeddingRateLimit wraps svc so every provider call waits on limiter.
// A nil limiter returns svc unchanged.
func WithEmbeddingRateLimit(svc driven.EmbeddingService, limiter *RateLimiter) driven.EmbeddingService {
	if svc == nil || limiter == nil {
		return svc
	}
	if _, ok := svc.(driven.QueryEmbedder); ok {
		return &rateLimitedQueryEmbedding{rateLimitedEmbedding{EmbeddingService: svc, limiter: limiter}}
	}
	return &rateLimitedEmbedding{EmbeddingService: svc, limiter: limiter}
}

func (s *rateLimitedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	v, err := s.EmbeddingService.Embed(ctx, text)
	s.limiter.observe(err)
	return v, err
}

func (s *rateLimitedEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	v, err := s.EmbeddingService.EmbedBatch(ctx, texts)
	s.limiter.observe(err)
	return v, err
}

// rateLimitedQueryEmbedding keeps the query task type of providers that have one.
type rateLimitedQueryEmbedding struct {
	rateLimitedEmbedding
}

func (s *rateLimitedQueryEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	v, err := s.EmbeddingService.(driven.QueryEmbedder).EmbedQuery(ctx, text)
	s.limiter.observe(err)
	return v, err
}

// rateLimitedVision throttles a vision model.
type rateLimitedVision struct {
	driven.VisionModel
	limiter *RateLimiter
}

// WithVisionRateLimit wraps model so every provider call waits on limiter.
// A nil limiter returns model unchanged.
func WithVisionRateLimit(model driven.VisionModel, limiter *RateLimiter) driven.VisionModel {
	if model == nil || limiter == nil {
		return model
	}
	return &rateLimitedVision{VisionModel: model, limiter: limiter}
}

func (m *rateLimitedVision) Describe(ctx context.Context, instruction string, image []byte, mimeType string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}
	text, err := m.VisionModel.Describe(ctx, instruction, image, mimeType)
	m.limiter.observe(err)
	return text, err
}
