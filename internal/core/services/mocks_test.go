package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/contextkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

const testDims = 4

func testContract() domain.CollectionContract {
	return domain.CollectionContract{Name: "kb_test", EmbeddingModel: "fake-embed", Dimensions: testDims}
}

// fakeEmbedder produces deterministic vectors from the text itself.
type fakeEmbedder struct {
	mu       sync.Mutex
	batches  int
	queries  int
	err      error
	short    bool // return one vector fewer than requested
	wrongDim bool
}

func vectorFor(text string) []float32 {
	return []float32{
		1,
		float32(len(text) % 5),
		float32(strings.Count(text, "e")),
		0.5,
	}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.wrongDim {
		return []float32{1, 2}, nil
	}
	return vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if f.wrongDim {
			out = append(out, []float32{1, 2})
			continue
		}
		out = append(out, vectorFor(t))
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int            { return testDims }
func (f *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

// queryAwareEmbedder records whether the query path was used.
type queryAwareEmbedder struct {
	fakeEmbedder
	queryCalls int
}

func (q *queryAwareEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	q.queryCalls++
	return q.Embed(ctx, text)
}

// spyBackend wraps the in-memory store and counts calls.
type spyBackend struct {
	*memory.VectorStore

	mu        sync.Mutex
	searches  int
	upserts   int
	lastK     int
	pingErr   error
	upsertErr error
	searchErr error
	delay     time.Duration
}

func newSpyBackend() *spyBackend {
	return &spyBackend{VectorStore: memory.NewVectorStore()}
}

func (b *spyBackend) Ping(ctx context.Context) error {
	if b.pingErr != nil {
		return b.pingErr
	}
	return b.VectorStore.Ping(ctx)
}

func (b *spyBackend) Upsert(ctx context.Context, name string, records []domain.VectorRecord) error {
	b.mu.Lock()
	b.upserts++
	b.mu.Unlock()
	if b.upsertErr != nil {
		return b.upsertErr
	}
	return b.VectorStore.Upsert(ctx, name, records)
}

func (b *spyBackend) Search(
	ctx context.Context, name string, vector []float32, k int, filter *domain.MetadataFilter,
) ([]domain.VectorMatch, error) {
	b.mu.Lock()
	b.searches++
	b.lastK = k
	b.mu.Unlock()
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.searchErr != nil {
		return nil, b.searchErr
	}
	return b.VectorStore.Search(ctx, name, vector, k, filter)
}

// fakeExtractor returns fixed pages or an error.
type fakeExtractor struct {
	kind  driven.ExtractorKind
	types []string
	pages []domain.Page
	err   error
	calls int
}

func (f *fakeExtractor) Kind() driven.ExtractorKind   { return f.kind }
func (f *fakeExtractor) SupportedMIMETypes() []string { return f.types }

func (f *fakeExtractor) Extract(_ context.Context, _ domain.SourceFile) ([]domain.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// newTestGateway builds a gateway over a spy backend.
func newTestGateway(emb driven.EmbeddingService) (*VectorGateway, *spyBackend) {
	backend := newSpyBackend()
	return NewVectorGateway(backend, NewCheckedEmbedder(emb, testDims), testContract(), time.Second), backend
}
