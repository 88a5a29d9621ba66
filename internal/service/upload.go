package service

import (
	"context"
	"time"

	"github.com/tessellate-ai/recall/internal/domain"
	"github.com/tessellate-ai/recall/internal/embedding"
	"github.com/tessellate-ai/recall/internal/index"
)

// uploadBatchSize is the number of chunks encoded and upserted per round
// trip. Kept small because encoding dominates memory use.
const uploadBatchSize = 8

// payloadIndexes lists the payload fields indexed for filtering, in
// creation order.
var payloadIndexes = []struct {
	Field  string
	Schema string
}{
	{"platform", index.SchemaKeyword},
	{"has_interpretations", index.SchemaBool},
	{"timestamp", index.SchemaFloat},
	{"conversation_title", index.SchemaKeyword},
	{"conversation_id", index.SchemaKeyword},
	{"assistant_model", index.SchemaKeyword},
	{"turn_number", index.SchemaInteger},
}

// UploadIndex is the slice of the index client the upload pipeline uses.
type UploadIndex interface {
	Exists(ctx context.Context) (bool, error)
	CreateCollection(ctx context.Context, denseSize int) error
	DeleteCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []index.Point) error
	CreatePayloadIndex(ctx context.Context, field, schema string) error
	Close()
}

// UploadOptions tunes one upload run.
type UploadOptions struct {
	// Mode selects how much of each chunk is rendered into embedding
	// text. Empty means balanced.
	Mode domain.EmbedMode
	// BatchSize overrides the default batch size when positive.
	BatchSize int
	// Progress, when set, is called after every flushed batch with the
	// number of points written so far and the collection size.
	Progress func(done, total int)
}

// UploadReport summarizes a finished upload.
type UploadReport struct {
	Points  int
	Batches int
	Skipped int
}

// UploadService encodes a chunk collection and writes it into the index.
type UploadService struct {
	encoder  embedding.Encoder
	newIndex func() UploadIndex
}

// NewUploadService creates an UploadService around an encoder and an
// index connection factory.
func NewUploadService(encoder embedding.Encoder, newIndex func() UploadIndex) *UploadService {
	return &UploadService{
		encoder:  encoder,
		newIndex: newIndex,
	}
}

// EnsureCollection makes sure the target collection exists with the
// hybrid vector layout and its payload indexes. With recreate set an
// existing collection is dropped first. Returns whether a collection was
// created.
func (s *UploadService) EnsureCollection(ctx context.Context, recreate bool) (bool, error) {
	client := s.newIndex()
	defer client.Close()

	exists, err := client.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists && !recreate {
		return false, nil
	}
	if exists {
		if err := client.DeleteCollection(ctx); err != nil {
			return false, err
		}
	}

	if err := client.CreateCollection(ctx, s.encoder.Dimensions()); err != nil {
		return false, err
	}
	for _, pi := range payloadIndexes {
		if err := client.CreatePayloadIndex(ctx, pi.Field, pi.Schema); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Upload encodes every chunk and upserts the points in batches. Point ids
// are a single running sequence across the whole collection, so a re-run
// overwrites the same points instead of duplicating them. Chunks that
// render to empty embedding text are skipped and counted.
func (s *UploadService) Upload(ctx context.Context, collection *domain.Collection, opts UploadOptions) (*UploadReport, error) {
	mode := opts.Mode
	if mode == "" {
		mode = domain.EmbedModeBalanced
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = uploadBatchSize
	}

	client := s.newIndex()
	defer client.Close()

	report := &UploadReport{}
	total := collection.Len()
	batch := make([]index.Point, 0, batchSize)
	nextID := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := client.Upsert(ctx, batch); err != nil {
			return err
		}
		report.Batches++
		report.Points += len(batch)
		if opts.Progress != nil {
			opts.Progress(report.Points, total)
		}
		batch = batch[:0]
		return nil
	}

	for _, chunk := range collection.Chunks {
		text := chunk.EmbeddingText(mode)
		if text == "" {
			report.Skipped++
			continue
		}

		dense, sparse, err := s.encoder.Encode(ctx, text)
		if err != nil {
			return nil, err
		}

		batch = append(batch, index.Point{
			ID:      nextID,
			Dense:   dense,
			Sparse:  sparse,
			Payload: chunkPayload(chunk),
		})
		nextID++

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return report, nil
}

// chunkPayload renders a chunk into its indexed payload. The timestamp is
// stored as epoch seconds so range filters work, with an ISO mirror for
// display.
func chunkPayload(c *domain.Chunk) map[string]any {
	payload := map[string]any{
		"conversation_id":        c.ConversationID,
		"platform":               string(c.Platform),
		"conversation_title":     c.ConversationTitle,
		"turn_number":            c.TurnNumber,
		"user_message":           c.UserMessage,
		"assistant_message":      c.AssistantMessage,
		"user_message_type":      c.UserMessageType,
		"assistant_message_type": c.AssistantMessageType,
		"assistant_model":        c.AssistantModel,
		"has_interpretations":    c.HasInterpretations(),
	}

	if c.Timestamp != nil {
		ts := *c.Timestamp
		payload["timestamp"] = float64(ts.UnixNano()) / float64(time.Second)
		payload["timestamp_iso"] = ts.UTC().Format(time.RFC3339Nano)
	}

	if c.Platform == domain.PlatformChatGPT && len(c.AIInterpretations) > 0 {
		aboutUser, aboutModel := "", ""
		if ucd, ok := c.AIInterpretations["user_context_message_data"].(map[string]any); ok {
			aboutUser, _ = ucd["about_user_message"].(string)
			aboutModel, _ = ucd["about_model_message"].(string)
		}
		payload["about_user"] = aboutUser
		payload["about_model"] = aboutModel
	}

	if len(c.SystemContext) > 0 {
		payload["system_context"] = c.SystemContext
	}
	if len(c.ToolUsage) > 0 {
		payload["has_tool_usage"] = true
		payload["tool_count"] = len(c.ToolUsage)
	}

	return payload
}
