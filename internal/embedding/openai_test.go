package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/recall/internal/domain"
)

// MockEmbeddingAPI stands in for the remote embeddings API.
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func TestOpenAIEncode(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	encoder := &OpenAI{api: mockAPI, dimensions: 4}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, "hello").Return([]float32{0.1, 0.2, 0.3, 0.4}, nil)

	dense, sparse, err := encoder.Encode(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, dense)
	// This backend has no lexical representation.
	assert.Nil(t, sparse)
	mockAPI.AssertExpectations(t)
}

func TestOpenAIEncodeEmptyText(t *testing.T) {
	encoder := &OpenAI{api: new(MockEmbeddingAPI), dimensions: 4}

	_, _, err := encoder.Encode(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestOpenAIEncodeAPIError(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	encoder := &OpenAI{api: mockAPI, dimensions: 4}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, "hello").Return(nil, errors.New("rate limited"))

	_, _, err := encoder.Encode(ctx, "hello")
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExternalService, domainErr.Code)
	mockAPI.AssertExpectations(t)
}

func TestOpenAIEncodeWrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	encoder := &OpenAI{api: mockAPI, dimensions: 4}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, "hello").Return([]float32{0.1}, nil)

	_, _, err := encoder.Encode(ctx, "hello")
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestNewOpenAIDefaults(t *testing.T) {
	encoder := NewOpenAI(OpenAIConfig{APIKey: "test-key"})
	assert.Equal(t, DefaultOpenAIDimensions, encoder.Dimensions())
	assert.NotNil(t, encoder.api)
}
