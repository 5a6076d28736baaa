// Package chroma provides a VectorBackend over the ChromaDB v2 REST API.
//
// The collection contract is stored in the collection metadata, and
// collections are created with cosine distance so results are comparable
// with the other backends.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// BackendName identifies this backend in logs and health reports.
const BackendName = "chroma"

// Default configuration values.
const (
	DefaultURL      = "http://localhost:8000"
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
	DefaultTimeout  = 30 * time.Second
)

// Collection metadata keys holding the contract.
const (
	metaEmbeddingModel = "embedding_model"
	metaDimensions     = "dimensions"
	metaSpace          = "hnsw:space"
)

// Ensure Client implements the interface.
var _ driven.VectorBackend = (*Client)(nil)

// Config holds configuration for the ChromaDB client.
type Config struct {
	// URL is the server address (default: http://localhost:8000).
	URL string

	// Tenant and Database select the namespace (default: default_tenant/default_database).
	Tenant   string
	Database string

	// Timeout bounds each request (default: 30s).
	Timeout time.Duration
}

// Client talks to a ChromaDB server.
type Client struct {
	http     *http.Client
	baseURL  string
	tenant   string
	database string
}

// New creates a ChromaDB client. The server is not contacted until the first call.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Tenant == "" {
		cfg.Tenant = DefaultTenant
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		tenant:   cfg.Tenant,
		database: cfg.Database,
	}
}

type collectionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]*float64       `json:"distances"`
}

type getResponse struct {
	IDs []string `json:"ids"`
}

// Name returns the backend name.
func (c *Client) Name() string {
	return BackendName
}

// Ping calls the heartbeat endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, nil)
}

// CreateCollection gets or creates the collection, recording the contract in its metadata.
func (c *Client) CreateCollection(ctx context.Context, contract domain.CollectionContract) (*domain.Collection, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}

	body := map[string]any{
		"name": contract.Name,
		"metadata": map[string]any{
			metaEmbeddingModel: contract.EmbeddingModel,
			metaDimensions:     contract.Dimensions,
			metaSpace:          "cosine",
		},
		"get_or_create": true,
	}
	var resp collectionResponse
	if err := c.do(ctx, http.MethodPost, c.collectionsPath(), body, &resp); err != nil {
		return nil, err
	}
	return toCollection(contract.Name, resp), nil
}

// GetCollection returns an existing collection.
func (c *Client) GetCollection(ctx context.Context, name string) (*domain.Collection, error) {
	resp, err := c.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return toCollection(name, *resp), nil
}

// Upsert sends all records in one request.
func (c *Client) Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	coll, err := c.lookup(ctx, collection)
	if err != nil {
		return err
	}
	dims := toCollection(collection, *coll).Contract.Dimensions

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	documents := make([]string, len(records))
	metadatas := make([]domain.Metadata, len(records))
	for i, r := range records {
		if dims > 0 && len(r.Embedding) != dims {
			return domain.NewStoreError(domain.StoreDimensionMismatch, fmt.Sprintf(
				"Embedding dimension %d does not match collection dimension %d", len(r.Embedding), dims), nil)
		}
		ids[i] = r.ID
		embeddings[i] = r.Embedding
		documents[i] = r.Text
		metadatas[i] = r.Metadata
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	return c.do(ctx, http.MethodPost, c.collectionPath(coll.ID, "upsert"), body, nil)
}

// Search queries the collection for the k nearest records.
func (c *Client) Search(
	ctx context.Context,
	collection string,
	vector []float32,
	k int,
	filter *domain.MetadataFilter,
) ([]domain.VectorMatch, error) {
	coll, err := c.lookup(ctx, collection)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if filter != nil {
		body["where"] = map[string]any{filter.Field: filter.Value}
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, c.collectionPath(coll.ID, "query"), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	matches := make([]domain.VectorMatch, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		m := domain.VectorMatch{ID: id}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) && resp.Documents[0][i] != nil {
			m.Text = *resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			m.Metadata = normaliseMetadata(resp.Metadatas[0][i])
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			m.Distance = resp.Distances[0][i]
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Count returns the number of records in the collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	coll, err := c.lookup(ctx, collection)
	if err != nil {
		return 0, err
	}
	var n int
	if err := c.do(ctx, http.MethodGet, c.collectionPath(coll.ID, "count"), nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteDocument removes every record tagged with documentID.
func (c *Client) DeleteDocument(ctx context.Context, collection, documentID string) (int, error) {
	coll, err := c.lookup(ctx, collection)
	if err != nil {
		return 0, err
	}

	where := map[string]any{domain.TagDocumentID: documentID}
	var existing getResponse
	if err := c.do(ctx, http.MethodPost, c.collectionPath(coll.ID, "get"),
		map[string]any{"where": where, "include": []string{}}, &existing); err != nil {
		return 0, err
	}
	if len(existing.IDs) == 0 {
		return 0, nil
	}
	if err := c.do(ctx, http.MethodPost, c.collectionPath(coll.ID, "delete"),
		map[string]any{"ids": existing.IDs}, nil); err != nil {
		return 0, err
	}
	return len(existing.IDs), nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) lookup(ctx context.Context, name string) (*collectionResponse, error) {
	var resp collectionResponse
	err := c.do(ctx, http.MethodGet, c.collectionsPath()+"/"+url.PathEscape(name), nil, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.code == http.StatusNotFound || strings.Contains(se.body, "does not exist")) {
			return nil, domain.NewStoreError(domain.StoreCollectionMissing, fmt.Sprintf(
				"Collection %q does not exist. Make sure documents have been uploaded via the API.", name), err)
		}
		return nil, err
	}
	return &resp, nil
}

func (c *Client) collectionsPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections",
		url.PathEscape(c.tenant), url.PathEscape(c.database))
}

func (c *Client) collectionPath(id, action string) string {
	return c.collectionsPath() + "/" + url.PathEscape(id) + "/" + action
}

// statusError is a non-2xx response from the server.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chroma: status %d: %s", e.code, e.body)
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return domain.NewStoreError(domain.StoreRejected, "ChromaDB request could not be encoded", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.NewStoreError(domain.StoreUnreachable, c.connectMessage(), err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewStoreError(domain.StoreUnreachable, c.connectMessage(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewStoreError(domain.StoreUnreachable, c.connectMessage(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusInternalServerError {
			return domain.NewStoreError(domain.StoreUnreachable, c.connectMessage(), se)
		}
		if strings.Contains(se.body, "dimension") {
			return domain.NewStoreError(domain.StoreDimensionMismatch, "ChromaDB rejected the embedding dimension", se)
		}
		return domain.NewStoreError(domain.StoreRejected, "ChromaDB rejected the request", se)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewStoreError(domain.StoreRejected, "ChromaDB returned an invalid response", err)
	}
	return nil
}

func (c *Client) connectMessage() string {
	return "Failed to connect to ChromaDB at " + c.baseURL
}

func toCollection(name string, resp collectionResponse) *domain.Collection {
	coll := &domain.Collection{Contract: domain.CollectionContract{Name: name}}
	if resp.Name != "" {
		coll.Contract.Name = resp.Name
	}
	if model, ok := resp.Metadata[metaEmbeddingModel].(string); ok {
		coll.Contract.EmbeddingModel = model
	}
	if dims, ok := resp.Metadata[metaDimensions].(float64); ok {
		coll.Contract.Dimensions = int(dims)
	}
	return coll
}

// normaliseMetadata restores int64 for integral JSON numbers.
func normaliseMetadata(raw map[string]any) domain.Metadata {
	m := make(domain.Metadata, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			m[k] = int64(f)
			continue
		}
		m[k] = v
	}
	return m
}
