package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/recall/internal/domain"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	apiKey string
	body   map[string]any
}

// newTestClient spins up a stub index service that records every request
// and replies with response.
func newTestClient(t *testing.T, status int, response string) (*Client, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.apiKey = r.Header.Get("api-key")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&captured.body)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client := New(Config{URL: server.URL, APIKey: "secret", Collection: "recall"})
	t.Cleanup(client.Close)
	return client, captured
}

func TestClientQueryDense(t *testing.T) {
	response := `{"result": {"points": [
		{"id": 1, "score": 0.91, "payload": {"platform": "chatgpt"}},
		{"id": "9d0cda08-7d55-4b61-8f6a-2d8a8b7e0000", "score": 0.82, "payload": {}}
	]}}`
	client, captured := newTestClient(t, http.StatusOK, response)

	points, err := client.Query(context.Background(), QueryRequest{
		Dense: []float32{0.1, 0.2},
		Limit: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/collections/recall/points/query", captured.path)
	assert.Equal(t, "secret", captured.apiKey)
	assert.Equal(t, "dense", captured.body["using"])
	assert.Equal(t, float64(5), captured.body["limit"])
	assert.Equal(t, true, captured.body["with_payload"])
	_, hasVector := captured.body["with_vector"]
	assert.False(t, hasVector)

	require.Len(t, points, 2)
	assert.Equal(t, uint64(1), points[0].ID)
	assert.Equal(t, 0.91, points[0].Score)
	assert.Equal(t, "chatgpt", points[0].Payload["platform"])
	assert.Equal(t, "9d0cda08-7d55-4b61-8f6a-2d8a8b7e0000", points[1].ID)
}

func TestClientQuerySparse(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"result": {"points": []}}`)

	_, err := client.Query(context.Background(), QueryRequest{
		Sparse: &domain.SparseVector{Indices: []uint32{7, 42}, Values: []float32{0.5, 0.1}},
		Limit:  3,
	})
	require.NoError(t, err)

	assert.Equal(t, "sparse", captured.body["using"])
	query, ok := captured.body["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{float64(7), float64(42)}, query["indices"])
}

func TestClientQueryRecommend(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"result": {"points": []}}`)

	_, err := client.Query(context.Background(), QueryRequest{
		Recommend: &RecommendInput{
			Positive: []string{"12", "9d0cda08-7d55-4b61-8f6a-2d8a8b7e0000"},
			Negative: []string{"3"},
		},
		Limit: 10,
	})
	require.NoError(t, err)

	query := captured.body["query"].(map[string]any)
	recommend := query["recommend"].(map[string]any)
	// Numeric ids travel as numbers, UUIDs as strings.
	assert.Equal(t, []any{float64(12), "9d0cda08-7d55-4b61-8f6a-2d8a8b7e0000"}, recommend["positive"])
	assert.Equal(t, []any{float64(3)}, recommend["negative"])
	_, hasUsing := captured.body["using"]
	assert.False(t, hasUsing)
}

func TestClientQueryWithVectors(t *testing.T) {
	response := `{"result": {"points": [
		{"id": 1, "score": 0.9, "payload": {}, "vector": {"dense": [0.25, 0.5]}}
	]}}`
	client, captured := newTestClient(t, http.StatusOK, response)

	points, err := client.Query(context.Background(), QueryRequest{
		Dense:       []float32{0.1},
		Limit:       2,
		WithVectors: true,
	})
	require.NoError(t, err)

	assert.Equal(t, true, captured.body["with_vector"])
	require.Len(t, points, 1)
	assert.Equal(t, []float32{0.25, 0.5}, points[0].Dense)
}

func TestClientQueryGroups(t *testing.T) {
	response := `{"result": {"groups": [
		{"id": "chatgpt", "hits": [{"id": 4, "score": 0.8, "payload": {"platform": "chatgpt"}}]},
		{"id": "claude", "hits": []}
	]}}`
	client, captured := newTestClient(t, http.StatusOK, response)

	groups, err := client.QueryGroups(context.Background(), GroupQueryRequest{
		Dense:     []float32{0.3},
		GroupBy:   "platform",
		Limit:     2,
		GroupSize: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "/collections/recall/points/query/groups", captured.path)
	assert.Equal(t, "platform", captured.body["group_by"])
	assert.Equal(t, float64(3), captured.body["group_size"])

	require.Len(t, groups, 2)
	assert.Equal(t, "chatgpt", groups[0].ID)
	require.Len(t, groups[0].Hits, 1)
	assert.Equal(t, uint64(4), groups[0].Hits[0].ID)
}

func TestClientCreateCollection(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"result": true}`)

	require.NoError(t, client.CreateCollection(context.Background(), 1024))

	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/collections/recall", captured.path)

	vectors := captured.body["vectors"].(map[string]any)
	dense := vectors["dense"].(map[string]any)
	assert.Equal(t, float64(1024), dense["size"])
	assert.Equal(t, "Cosine", dense["distance"])

	sparse := captured.body["sparse_vectors"].(map[string]any)
	assert.Contains(t, sparse, "sparse")
}

func TestClientUpsert(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"result": {"status": "completed"}}`)

	points := []Point{
		{
			ID:      0,
			Dense:   []float32{0.1, 0.2},
			Sparse:  &domain.SparseVector{Indices: []uint32{5}, Values: []float32{0.7}},
			Payload: map[string]any{"platform": "claude"},
		},
		{
			ID:      1,
			Dense:   []float32{0.3, 0.4},
			Payload: map[string]any{"platform": "chatgpt"},
		},
	}
	require.NoError(t, client.Upsert(context.Background(), points))

	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/collections/recall/points", captured.path)
	assert.Equal(t, "wait=true", captured.query)

	wire := captured.body["points"].([]any)
	require.Len(t, wire, 2)

	first := wire[0].(map[string]any)
	vector := first["vector"].(map[string]any)
	assert.Contains(t, vector, "dense")
	assert.Contains(t, vector, "sparse")

	// Dense-only points omit the sparse vector entirely.
	second := wire[1].(map[string]any)
	vector = second["vector"].(map[string]any)
	assert.NotContains(t, vector, "sparse")
}

func TestClientCreatePayloadIndex(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"result": true}`)

	require.NoError(t, client.CreatePayloadIndex(context.Background(), "platform", SchemaKeyword))

	assert.Equal(t, "/collections/recall/index", captured.path)
	assert.Equal(t, "wait=true", captured.query)
	assert.Equal(t, "platform", captured.body["field_name"])
	assert.Equal(t, "keyword", captured.body["field_schema"])
}

func TestClientInfo(t *testing.T) {
	response := `{"result": {"status": "green", "points_count": 1234, "segments_count": 2}}`
	client, captured := newTestClient(t, http.StatusOK, response)

	info, err := client.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, captured.method)
	assert.Equal(t, "green", info.Status)
	assert.Equal(t, int64(1234), info.PointsCount)
}

func TestClientHealth(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, "healthz check passed")

	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, "/healthz", captured.path)
}

func TestClientErrorStatusBecomesExternalServiceError(t *testing.T) {
	client, _ := newTestClient(t, http.StatusServiceUnavailable, `{"status": {"error": "overloaded"}}`)

	_, err := client.Query(context.Background(), QueryRequest{Dense: []float32{0.1}, Limit: 1})
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExternalService, domainErr.Code)
	assert.Contains(t, domainErr.Error(), "overloaded")
}

func TestClientUnreachable(t *testing.T) {
	client := New(Config{URL: "http://127.0.0.1:1", Collection: "recall"})
	defer client.Close()

	err := client.Health(context.Background())
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExternalService, domainErr.Code)
}

func TestClientDeleteCollection(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"result": true}`)

	require.NoError(t, client.DeleteCollection(context.Background()))
	assert.Equal(t, http.MethodDelete, captured.method)
	assert.Equal(t, "/collections/recall", captured.path)
}
