package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// DefaultStoreTimeout bounds each store call when none is configured.
const DefaultStoreTimeout = 30 * time.Second

// VectorGateway owns the configured collection. The ingesting and the
// querying process each construct one from the same settings; the
// collection contract is checked on every open, so a process configured
// with a different embedding model fails fast instead of returning
// meaningless similarities.
type VectorGateway struct {
	backend  driven.VectorBackend
	embedder *CheckedEmbedder
	contract domain.CollectionContract
	timeout  time.Duration
}

// NewVectorGateway creates a gateway for contract over backend.
func NewVectorGateway(
	backend driven.VectorBackend,
	embedder *CheckedEmbedder,
	contract domain.CollectionContract,
	timeout time.Duration,
) *VectorGateway {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &VectorGateway{
		backend:  backend,
		embedder: embedder,
		contract: contract,
		timeout:  timeout,
	}
}

// Backend returns the backend name.
func (g *VectorGateway) Backend() string {
	return g.backend.Name()
}

// Contract returns the expected collection contract.
func (g *VectorGateway) Contract() domain.CollectionContract {
	return g.contract
}

// Ping checks the store is reachable.
func (g *VectorGateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.backend.Ping(ctx); err != nil {
		return g.storeFailure(err)
	}
	return nil
}

// OpenOrGetCollection returns the collection, verifying its contract.
// With create false a missing collection is reported as a
// collection-missing store error, which means nothing was ingested yet.
func (g *VectorGateway) OpenOrGetCollection(ctx context.Context, create bool) (*domain.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var (
		coll *domain.Collection
		err  error
	)
	if create {
		coll, err = g.backend.CreateCollection(ctx, g.contract)
	} else {
		coll, err = g.backend.GetCollection(ctx, g.contract.Name)
	}
	if err != nil {
		return nil, g.storeFailure(err)
	}

	if err := g.contract.Check(coll.Contract); err != nil {
		return nil, err
	}
	return coll, nil
}

// AddChunks embeds the chunks in one batch and writes them in one
// upsert. Either the whole batch is stored or an error is returned.
// It returns the number of records written.
func (g *VectorGateway) AddChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if _, err := g.OpenOrGetCollection(ctx, true); err != nil {
		return 0, err
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	records := make([]domain.VectorRecord, len(chunks))
	for i := range chunks {
		records[i] = domain.VectorRecord{
			ID:        chunks[i].ID,
			Text:      chunks[i].Text,
			Embedding: vectors[i],
			Metadata:  chunks[i].Metadata,
		}
	}

	logger.Debug("Upserting %d records into %s/%s", len(records), g.backend.Name(), g.contract.Name)

	storeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.backend.Upsert(storeCtx, g.contract.Name, records); err != nil {
		return 0, g.storeFailure(err)
	}
	return len(records), nil
}

// Query embeds text and returns up to topK matches in ascending distance
// order. topK is clamped into [1, 20] before the store is asked.
func (g *VectorGateway) Query(
	ctx context.Context, text string, topK int, filter *domain.MetadataFilter,
) ([]domain.VectorMatch, error) {
	k := domain.ClampTopK(topK)
	if k != topK {
		logger.Debug("Clamped top-k from %d to %d", topK, k)
	}

	if _, err := g.OpenOrGetCollection(ctx, false); err != nil {
		return nil, err
	}

	vector, err := g.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	matches, err := g.backend.Search(storeCtx, g.contract.Name, vector, k, filter)
	if err != nil {
		return nil, g.storeFailure(err)
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of stored chunks.
func (g *VectorGateway) Count(ctx context.Context) (int, error) {
	if _, err := g.OpenOrGetCollection(ctx, false); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	n, err := g.backend.Count(ctx, g.contract.Name)
	if err != nil {
		return 0, g.storeFailure(err)
	}
	return n, nil
}

// DeleteDocument removes every chunk of a document.
func (g *VectorGateway) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if _, err := g.OpenOrGetCollection(ctx, false); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	n, err := g.backend.DeleteDocument(ctx, g.contract.Name, documentID)
	if err != nil {
		return 0, g.storeFailure(err)
	}
	return n, nil
}

// storeFailure keeps classified backend errors and maps anything else
// to an unreachable store error.
func (g *VectorGateway) storeFailure(err error) error {
	var classified *domain.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewStoreError(domain.StoreUnreachable,
			fmt.Sprintf("%s vector store did not respond within %s", g.backend.Name(), g.timeout), err)
	}
	return domain.NewStoreError(domain.StoreUnreachable,
		fmt.Sprintf("%s vector store is unreachable", g.backend.Name()), err)
}
