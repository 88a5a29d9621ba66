package embedding

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

// DefaultBGEM3Dimensions is the dense width of the BGE-M3 family.
const DefaultBGEM3Dimensions = 1024

// DefaultBGEM3Timeout bounds one encode call. First calls can be slow
// while the sidecar warms the model.
const DefaultBGEM3Timeout = 120 * time.Second

var _ Encoder = (*BGEM3)(nil)

// BGEM3 talks to the embedding sidecar, a small HTTP service wrapping the
// BGE-M3 model. One POST /encode call returns both the dense vector and
// the sparse term weights.
type BGEM3 struct {
	baseURL    string
	dimensions int
	http       *http.Client
}

// BGEM3Config carries the sidecar connection settings.
type BGEM3Config struct {
	URL        string
	Dimensions int
	Timeout    time.Duration
}

// NewBGEM3 returns a sidecar-backed encoder.
func NewBGEM3(cfg BGEM3Config) *BGEM3 {
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultBGEM3Dimensions
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultBGEM3Timeout
	}
	return &BGEM3{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		dimensions: dimensions,
		http:       &http.Client{Timeout: timeout},
	}
}

// Dimensions implements Encoder.
func (e *BGEM3) Dimensions() int { return e.dimensions }

type bgem3Request struct {
	Text string `json:"text"`
}

type bgem3Response struct {
	Dense  []float32 `json:"dense"`
	Sparse struct {
		Indices []uint32  `json:"indices"`
		Values  []float32 `json:"values"`
	} `json:"sparse"`
}

// Encode implements Encoder.
func (e *BGEM3) Encode(ctx context.Context, text string) ([]float32, *domain.SparseVector, error) {
	if text == "" {
		return nil, nil, ErrEmptyText
	}

	body, err := json.Marshal(bgem3Request{Text: text})
	if err != nil {
		return nil, nil, domain.NewExternalServiceError("embedding", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/encode", bytes.NewReader(body))
	if err != nil {
		return nil, nil, domain.NewExternalServiceError("embedding", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, nil, domain.NewExternalServiceError("embedding", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, nil, domain.NewExternalServiceError("embedding",
			fmt.Errorf("POST /encode: %s: %s", resp.Status, strings.TrimSpace(string(detail))))
	}

	var decoded bgem3Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, nil, domain.NewExternalServiceError("embedding", err)
	}

	if len(decoded.Dense) != e.dimensions {
		return nil, nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, e.dimensions, len(decoded.Dense))
	}

	var sparse *domain.SparseVector
	if len(decoded.Sparse.Indices) > 0 && len(decoded.Sparse.Indices) == len(decoded.Sparse.Values) {
		sparse = &domain.SparseVector{
			Indices: decoded.Sparse.Indices,
			Values:  decoded.Sparse.Values,
		}
	}
	return decoded.Dense, sparse, nil
}
