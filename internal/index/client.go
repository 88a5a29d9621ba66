// Package index is a REST client for the Qdrant-compatible index service:
// vector queries, grouped queries, upserts, and collection management.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tessellate-ai/recall/internal/domain"
)

// Vector space names inside the collection. Dense carries the semantic
// embedding, sparse the lexical term weights.
const (
	VectorDense  = "dense"
	VectorSparse = "sparse"
)

// DefaultTimeout bounds every index service call.
const DefaultTimeout = 60 * time.Second

// Config carries the connection settings for one client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Client talks to one collection of the index service. Construct one per
// request and Close it when done; it holds no state beyond the connection.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	http       *http.Client
}

// New returns a client for cfg. The URL may carry a trailing slash.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		http:       &http.Client{Timeout: timeout},
	}
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Query runs one vector query and returns its scored points.
func (c *Client) Query(ctx context.Context, req QueryRequest) ([]ScoredPoint, error) {
	body := map[string]any{
		"limit":        req.Limit,
		"with_payload": true,
	}

	switch {
	case req.Recommend != nil:
		positive := make([]any, len(req.Recommend.Positive))
		for i, id := range req.Recommend.Positive {
			positive[i] = encodePointID(id)
		}
		negative := make([]any, len(req.Recommend.Negative))
		for i, id := range req.Recommend.Negative {
			negative[i] = encodePointID(id)
		}
		body["query"] = map[string]any{
			"recommend": map[string]any{
				"positive": positive,
				"negative": negative,
			},
		}
	case req.Sparse != nil:
		body["query"] = map[string]any{
			"indices": req.Sparse.Indices,
			"values":  req.Sparse.Values,
		}
		body["using"] = VectorSparse
	default:
		body["query"] = req.Dense
		using := req.Using
		if using == "" {
			using = VectorDense
		}
		body["using"] = using
	}

	if req.Filter != nil {
		body["filter"] = req.Filter
	}
	if req.WithVectors {
		body["with_vector"] = true
	}

	var resp struct {
		Result struct {
			Points []scoredPointWire `json:"points"`
		} `json:"result"`
	}
	if err := c.call(ctx, http.MethodPost, c.collectionPath("/points/query"), body, &resp); err != nil {
		return nil, err
	}

	points := make([]ScoredPoint, len(resp.Result.Points))
	for i, wire := range resp.Result.Points {
		points[i] = wire.toPoint()
	}
	return points, nil
}

// QueryGroups runs one dense query clustered by a payload field.
func (c *Client) QueryGroups(ctx context.Context, req GroupQueryRequest) ([]PointGroup, error) {
	body := map[string]any{
		"query":        req.Dense,
		"using":        VectorDense,
		"group_by":     req.GroupBy,
		"limit":        req.Limit,
		"group_size":   req.GroupSize,
		"with_payload": true,
	}
	if req.Filter != nil {
		body["filter"] = req.Filter
	}

	var resp struct {
		Result struct {
			Groups []struct {
				ID   json.RawMessage   `json:"id"`
				Hits []scoredPointWire `json:"hits"`
			} `json:"groups"`
		} `json:"result"`
	}
	if err := c.call(ctx, http.MethodPost, c.collectionPath("/points/query/groups"), body, &resp); err != nil {
		return nil, err
	}

	groups := make([]PointGroup, len(resp.Result.Groups))
	for i, wire := range resp.Result.Groups {
		group := PointGroup{
			ID:   decodePointID(wire.ID),
			Hits: make([]ScoredPoint, len(wire.Hits)),
		}
		for j, hit := range wire.Hits {
			group.Hits[j] = hit.toPoint()
		}
		groups[i] = group
	}
	return groups, nil
}

// CreateCollection creates the collection with a named cosine dense vector
// of the given width and a named sparse vector. The index service rejects
// creating a collection that already exists; callers check Exists first.
func (c *Client) CreateCollection(ctx context.Context, denseSize int) error {
	body := map[string]any{
		"vectors": map[string]any{
			VectorDense: map[string]any{
				"size":     denseSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			VectorSparse: map[string]any{
				"index": map[string]any{"on_disk": false},
			},
		},
	}
	return c.call(ctx, http.MethodPut, c.collectionPath(""), body, nil)
}

// DeleteCollection drops the collection and all its points.
func (c *Client) DeleteCollection(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, c.collectionPath(""), nil, nil)
}

// Exists reports whether the collection exists.
func (c *Client) Exists(ctx context.Context) (bool, error) {
	var resp struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := c.call(ctx, http.MethodGet, c.collectionPath("/exists"), nil, &resp); err != nil {
		return false, err
	}
	return resp.Result.Exists, nil
}

// Info fetches collection status and point counts.
func (c *Client) Info(ctx context.Context) (*CollectionInfo, error) {
	var resp struct {
		Result CollectionInfo `json:"result"`
	}
	if err := c.call(ctx, http.MethodGet, c.collectionPath(""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// Upsert writes points and waits for them to be persisted.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	wire := make([]map[string]any, len(points))
	for i, p := range points {
		vector := map[string]any{VectorDense: p.Dense}
		if p.Sparse != nil {
			vector[VectorSparse] = map[string]any{
				"indices": p.Sparse.Indices,
				"values":  p.Sparse.Values,
			}
		}
		wire[i] = map[string]any{
			"id":      p.ID,
			"vector":  vector,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": wire}
	return c.call(ctx, http.MethodPut, c.collectionPath("/points?wait=true"), body, nil)
}

// CreatePayloadIndex declares a payload field index so filters on it stay
// fast as the collection grows. Schema is one of the Schema constants.
func (c *Client) CreatePayloadIndex(ctx context.Context, field, schema string) error {
	body := map[string]any{
		"field_name":   field,
		"field_schema": schema,
	}
	return c.call(ctx, http.MethodPut, c.collectionPath("/index?wait=true"), body, nil)
}

// Health probes the index service liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) collectionPath(suffix string) string {
	return "/collections/" + c.collection + suffix
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return domain.NewExternalServiceError("index", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.NewExternalServiceError("index", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewExternalServiceError("index", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.NewExternalServiceError("index",
			fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(detail))))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewExternalServiceError("index", err)
		}
	}
	return nil
}
