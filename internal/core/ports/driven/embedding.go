package driven

import "context"

// EmbeddingService turns text into vectors.
//
// Ingestion and query must share one configuration. Vectors from
// different models are not comparable, which is why the model name and
// dimensionality are recorded in the collection contract.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns exactly one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string

	// Ping checks reachability and credentials without embedding anything.
	Ping(ctx context.Context) error

	Close() error
}

// QueryEmbedder is an optional extension for providers with a distinct
// retrieval-query mode. Without it the query is embedded with Embed.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
