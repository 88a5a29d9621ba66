package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tessellate-ai/recall/internal/domain"
)

const (
	// DefaultOpenAIModel is the embeddings model used when none is set.
	DefaultOpenAIModel = openai.AdaEmbeddingV2
	// DefaultOpenAIDimensions is the vector width of the default model.
	DefaultOpenAIDimensions = 1536
)

var _ Encoder = (*OpenAI)(nil)

// EmbeddingAPI is the slice of the OpenAI client this encoder needs,
// kept narrow so tests can stand in for the remote API.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// OpenAI encodes text through the OpenAI embeddings API. The API has no
// sparse representation, so Encode always returns a nil sparse vector and
// search degrades to dense-only.
type OpenAI struct {
	api        EmbeddingAPI
	dimensions int
}

// OpenAIConfig carries the API settings.
type OpenAIConfig struct {
	APIKey     string
	Model      openai.EmbeddingModel
	Dimensions int
}

// NewOpenAI returns an OpenAI-backed encoder.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultOpenAIDimensions
	}
	return &OpenAI{
		api:        newOpenAIAdapter(cfg.APIKey, cfg.Model),
		dimensions: dimensions,
	}
}

// Dimensions implements Encoder.
func (e *OpenAI) Dimensions() int { return e.dimensions }

// Encode implements Encoder.
func (e *OpenAI) Encode(ctx context.Context, text string) ([]float32, *domain.SparseVector, error) {
	if text == "" {
		return nil, nil, ErrEmptyText
	}

	dense, err := e.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, nil, domain.NewExternalServiceError("embedding", err)
	}
	if len(dense) != e.dimensions {
		return nil, nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, e.dimensions, len(dense))
	}
	return dense, nil, nil
}

type openAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func newOpenAIAdapter(apiKey string, model openai.EmbeddingModel) *openAIAdapter {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &openAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (a *openAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}
	return resp.Data[0].Embedding, nil
}
