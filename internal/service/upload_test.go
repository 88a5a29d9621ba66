package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tessellate-ai/recall/internal/domain"
	"github.com/tessellate-ai/recall/internal/index"
)

// MockUploadIndex mocks the index client used by the upload pipeline
type MockUploadIndex struct {
	mock.Mock
}

func (m *MockUploadIndex) Exists(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockUploadIndex) CreateCollection(ctx context.Context, denseSize int) error {
	args := m.Called(ctx, denseSize)
	return args.Error(0)
}

func (m *MockUploadIndex) DeleteCollection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUploadIndex) Upsert(ctx context.Context, points []index.Point) error {
	args := m.Called(ctx, points)
	return args.Error(0)
}

func (m *MockUploadIndex) CreatePayloadIndex(ctx context.Context, field, schema string) error {
	args := m.Called(ctx, field, schema)
	return args.Error(0)
}

func (m *MockUploadIndex) Close() {
	m.Called()
}

func newUploadFixture() (*UploadService, *MockEncoder, *MockUploadIndex) {
	encoder := new(MockEncoder)
	idx := new(MockUploadIndex)
	idx.On("Close").Return()
	svc := NewUploadService(encoder, func() UploadIndex { return idx })
	return svc, encoder, idx
}

func uploadChunk(user string, turn int) *domain.Chunk {
	chunk := domain.NewChunk(domain.PlatformChatGPT, "conv-1")
	chunk.UserMessage = user
	chunk.AssistantMessage = "reply to " + user
	chunk.TurnNumber = turn
	return chunk
}

func TestUploadService_Upload_BatchesWithRunningIDs(t *testing.T) {
	svc, encoder, idx := newUploadFixture()

	collection := domain.NewCollection()
	for i, msg := range []string{"one", "two", "three"} {
		collection.Add(uploadChunk(msg, i))
	}

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([]float32{0.1, 0.2}, &domain.SparseVector{Indices: []uint32{1}, Values: []float32{0.3}}, nil)

	var batches [][]index.Point
	idx.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		points := args.Get(1).([]index.Point)
		copied := make([]index.Point, len(points))
		copy(copied, points)
		batches = append(batches, copied)
	}).Return(nil)

	var progress []int
	report, err := svc.Upload(context.Background(), collection, UploadOptions{
		BatchSize: 2,
		Progress:  func(done, total int) { progress = append(progress, done) },
	})

	require.NoError(t, err)
	assert.Equal(t, 3, report.Points)
	assert.Equal(t, 2, report.Batches)
	assert.Equal(t, 0, report.Skipped)

	require.Len(t, batches, 2)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[1], 1)
	// Point ids are one running sequence across batches.
	assert.Equal(t, 0, batches[0][0].ID)
	assert.Equal(t, 1, batches[0][1].ID)
	assert.Equal(t, 2, batches[1][0].ID)

	assert.Equal(t, []int{2, 3}, progress)
	idx.AssertNumberOfCalls(t, "Close", 1)
}

func TestUploadService_Upload_SkipsEmptyEmbeddingText(t *testing.T) {
	svc, encoder, idx := newUploadFixture()

	collection := domain.NewCollection()
	assistantOnly := domain.NewChunk(domain.PlatformClaude, "conv-2")
	assistantOnly.AssistantMessage = "standalone note"
	collection.Add(assistantOnly)
	collection.Add(uploadChunk("real question", 0))

	encoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.1}, nil, nil)
	idx.On("Upsert", mock.Anything, mock.MatchedBy(func(points []index.Point) bool {
		return len(points) == 1 && points[0].ID == 0
	})).Return(nil)

	// Minimal mode renders the user message only, so the assistant-only
	// chunk produces no text.
	report, err := svc.Upload(context.Background(), collection, UploadOptions{Mode: domain.EmbedModeMinimal})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Points)
	assert.Equal(t, 1, report.Skipped)
}

func TestUploadService_Upload_EncoderErrorAborts(t *testing.T) {
	svc, encoder, idx := newUploadFixture()

	collection := domain.NewCollection()
	collection.Add(uploadChunk("q", 0))

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return(nil, nil, domain.NewExternalServiceError("embedding", assert.AnError))

	_, err := svc.Upload(context.Background(), collection, UploadOptions{})

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExternalService, domainErr.Code)
	idx.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	idx.AssertNumberOfCalls(t, "Close", 1)
}

func TestUploadService_Upload_SparseOmittedForDenseOnlyEncoder(t *testing.T) {
	svc, encoder, idx := newUploadFixture()

	collection := domain.NewCollection()
	collection.Add(uploadChunk("q", 0))

	encoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.5}, nil, nil)
	idx.On("Upsert", mock.Anything, mock.MatchedBy(func(points []index.Point) bool {
		return len(points) == 1 && points[0].Sparse == nil
	})).Return(nil)

	_, err := svc.Upload(context.Background(), collection, UploadOptions{})

	require.NoError(t, err)
	idx.AssertExpectations(t)
}

func TestUploadService_EnsureCollection_CreatesWhenMissing(t *testing.T) {
	svc, encoder, idx := newUploadFixture()

	encoder.On("Dimensions").Return(1024)
	idx.On("Exists", mock.Anything).Return(false, nil)
	idx.On("CreateCollection", mock.Anything, 1024).Return(nil)
	idx.On("CreatePayloadIndex", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	created, err := svc.EnsureCollection(context.Background(), false)

	require.NoError(t, err)
	assert.True(t, created)
	idx.AssertNumberOfCalls(t, "CreatePayloadIndex", 7)
	idx.AssertNotCalled(t, "DeleteCollection", mock.Anything)
}

func TestUploadService_EnsureCollection_ExistingUntouched(t *testing.T) {
	svc, _, idx := newUploadFixture()

	idx.On("Exists", mock.Anything).Return(true, nil)

	created, err := svc.EnsureCollection(context.Background(), false)

	require.NoError(t, err)
	assert.False(t, created)
	idx.AssertNotCalled(t, "CreateCollection", mock.Anything, mock.Anything)
}

func TestUploadService_EnsureCollection_RecreateDropsFirst(t *testing.T) {
	svc, encoder, idx := newUploadFixture()

	encoder.On("Dimensions").Return(4)
	idx.On("Exists", mock.Anything).Return(true, nil)
	idx.On("DeleteCollection", mock.Anything).Return(nil)
	idx.On("CreateCollection", mock.Anything, 4).Return(nil)
	idx.On("CreatePayloadIndex", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	created, err := svc.EnsureCollection(context.Background(), true)

	require.NoError(t, err)
	assert.True(t, created)
	idx.AssertExpectations(t)
}

func TestChunkPayload_FullMapping(t *testing.T) {
	ts := time.Unix(1704067200, 0).UTC()
	chunk := domain.NewChunk(domain.PlatformChatGPT, "conv-9")
	chunk.Timestamp = &ts
	chunk.ConversationTitle = "Trip planning"
	chunk.TurnNumber = 4
	chunk.UserMessage = "what about trains"
	chunk.AssistantMessage = "trains are scenic"
	chunk.UserMessageType = "text"
	chunk.AssistantMessageType = "text"
	chunk.AssistantModel = "gpt-4o"
	chunk.AIInterpretations = map[string]any{
		"user_context_message_data": map[string]any{
			"about_user_message":  "frequent traveler",
			"about_model_message": "be concise",
		},
	}
	chunk.SystemContext = map[string]any{"system_interpretations": []any{"note"}}
	chunk.ToolUsage = []map[string]any{{"name": "search"}, {"name": "browse"}}

	payload := chunkPayload(chunk)

	assert.Equal(t, "conv-9", payload["conversation_id"])
	assert.Equal(t, "chatgpt", payload["platform"])
	assert.Equal(t, "Trip planning", payload["conversation_title"])
	assert.Equal(t, 4, payload["turn_number"])
	assert.Equal(t, float64(1704067200), payload["timestamp"])
	assert.Equal(t, "2024-01-01T00:00:00Z", payload["timestamp_iso"])
	assert.Equal(t, true, payload["has_interpretations"])
	assert.Equal(t, "frequent traveler", payload["about_user"])
	assert.Equal(t, "be concise", payload["about_model"])
	assert.Equal(t, true, payload["has_tool_usage"])
	assert.Equal(t, 2, payload["tool_count"])
	assert.NotNil(t, payload["system_context"])
}

func TestChunkPayload_MinimalChunk(t *testing.T) {
	chunk := domain.NewChunk(domain.PlatformClaude, "conv-min")
	chunk.UserMessage = "hi"

	payload := chunkPayload(chunk)

	assert.Equal(t, false, payload["has_interpretations"])
	assert.NotContains(t, payload, "timestamp")
	assert.NotContains(t, payload, "timestamp_iso")
	assert.NotContains(t, payload, "about_user")
	assert.NotContains(t, payload, "has_tool_usage")
	assert.NotContains(t, payload, "system_context")
}
