//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/tessellate-ai/recall/internal/api/handlers"
	"github.com/tessellate-ai/recall/internal/domain"
	"github.com/tessellate-ai/recall/internal/index"
	"github.com/tessellate-ai/recall/internal/server"
	"github.com/tessellate-ai/recall/internal/service"
	"github.com/tessellate-ai/recall/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	QdrantC      *testutil.QdrantContainer
	IndexCfg     index.Config
	Encoder      *hashEncoder
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv starts a Qdrant container, seeds it with a fixture
// collection, and serves the search API in-process
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	qdrantC := testutil.NewQdrantContainer(ctx, t)

	indexCfg := index.Config{
		URL:        qdrantC.Endpoint(),
		Collection: "e2e-chunks",
		Timeout:    30 * time.Second,
	}

	// Deterministic encoder: identical text encodes to identical vectors,
	// so relevance assertions are stable without a real model.
	encoder := newHashEncoder(256)

	uploadSvc := service.NewUploadService(encoder, func() service.UploadIndex {
		return index.New(indexCfg)
	})
	if _, err := uploadSvc.EnsureCollection(ctx, true); err != nil {
		qdrantC.Terminate(ctx)
		t.Fatalf("failed to create collection: %v", err)
	}
	if _, err := uploadSvc.Upload(ctx, seedCollection(), service.UploadOptions{}); err != nil {
		qdrantC.Terminate(ctx)
		t.Fatalf("failed to seed collection: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		qdrantC.Terminate(ctx)
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, encoder, indexCfg, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		QdrantC:      qdrantC,
		IndexCfg:     indexCfg,
		Encoder:      encoder,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.QdrantC != nil {
		e.QdrantC.Terminate(e.Ctx)
	}
}

// seedCollection builds the fixture chunks the suite searches over. Point
// ids follow upload order: 0..4.
func seedCollection() *domain.Collection {
	collection := domain.NewCollection()

	add := func(platform domain.Platform, convID, title, user, assistant string, day int, interp map[string]any) {
		chunk := domain.NewChunk(platform, convID)
		chunk.ConversationTitle = title
		chunk.UserMessage = user
		chunk.AssistantMessage = assistant
		ts := time.Date(2024, 3, day, 9, 0, 0, 0, time.UTC)
		chunk.Timestamp = &ts
		chunk.AIInterpretations = interp
		collection.Add(chunk)
	}

	add(domain.PlatformChatGPT, "conv-bread", "Bread baking", "my sourdough never rises", "try a warmer proofing spot", 1, map[string]any{
		"user_context_message_data": map[string]any{
			"about_user_message": "Hobby baker, impatient with long ferments.",
		},
	})
	add(domain.PlatformChatGPT, "conv-bread", "Bread baking", "how long should bulk fermentation take", "four to six hours at room temperature", 1, nil)
	add(domain.PlatformClaude, "conv-k8s", "Cluster upgrades", "how do I drain a kubernetes node safely", "cordon it first, then evict the pods", 5, nil)
	add(domain.PlatformClaude, "conv-k8s", "Cluster upgrades", "what breaks when the api server is down", "kubectl and controllers stop reconciling", 6, nil)
	add(domain.PlatformClaude, "conv-garden", "Garden planning", "when should I plant tomatoes outside", "after the last frost in your area", 12, nil)

	return collection
}

// startServer serves the search API on the given port
func startServer(t *testing.T, encoder *hashEncoder, indexCfg index.Config, port int) (string, func()) {
	searchSvc := service.NewSearchService(encoder, func() service.SearchIndex {
		return index.New(indexCfg)
	})
	searchHandler := handlers.NewSearchHandler(searchSvc)

	cfg := server.RouterConfig{
		SearchHandler: searchHandler,
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request against the server
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request against the server
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = strings.NewReader(string(jsonData))
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// hashEncoder is a deterministic stand-in for the embedding sidecar. The
// dense vector hashes character trigrams into buckets; the sparse vector
// hashes whole tokens. Similar texts land in overlapping buckets, equal
// texts encode identically.
type hashEncoder struct {
	dims int
}

func newHashEncoder(dims int) *hashEncoder {
	return &hashEncoder{dims: dims}
}

func (h *hashEncoder) Dimensions() int { return h.dims }

func (h *hashEncoder) Encode(_ context.Context, text string) ([]float32, *domain.SparseVector, error) {
	lower := strings.ToLower(text)

	dense := make([]float32, h.dims)
	runes := []rune(lower)
	for i := 0; i+3 <= len(runes); i++ {
		dense[bucket(string(runes[i:i+3]))%uint32(h.dims)]++
	}
	var norm float64
	for _, v := range dense {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range dense {
			dense[i] *= scale
		}
	} else {
		dense[0] = 1
	}

	weights := map[uint32]float32{}
	for _, token := range strings.Fields(lower) {
		weights[bucket(token)]++
	}
	indices := make([]uint32, 0, len(weights))
	for idx := range weights {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = weights[idx]
	}

	return dense, &domain.SparseVector{Indices: indices, Values: values}, nil
}

func bucket(s string) uint32 {
	f := fnv.New32a()
	f.Write([]byte(s))
	return f.Sum32()
}
