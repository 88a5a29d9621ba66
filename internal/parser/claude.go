package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessellate-ai/recall/internal/domain"
)

var _ Normalizer = (*Claude)(nil)

// Claude normalizes the flat-array export: each conversation carries an
// ordered turn list tagged with a sender role. Turns pair greedily, a
// human turn with the assistant turn that follows it; anything that breaks
// the alternation is skipped rather than treated as an error.
type Claude struct{}

// NewClaude returns the paired-turn export normalizer.
func NewClaude() *Claude { return &Claude{} }

// Platform implements Normalizer.
func (p *Claude) Platform() domain.Platform { return domain.PlatformClaude }

// Turn lists hide under different keys depending on export vintage.
var claudeTurnListFields = []string{"chat_messages", "messages", "turns", "exchanges"}

// ParseExport implements Normalizer. Accepts a list of conversations, a
// {"conversations": [...]} wrapper, or a single conversation object.
func (p *Claude) ParseExport(data []byte) (*domain.Collection, error) {
	collection := domain.NewCollection()

	var conversations []map[string]any
	if err := json.Unmarshal(data, &conversations); err == nil {
		for _, conv := range conversations {
			p.parseConversation(conv, collection)
		}
		return collection, nil
	}

	var wrapper map[string]any
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMalformedInput, "claude export decode failed", err)
	}

	if inner, ok := wrapper["conversations"].([]any); ok {
		for _, item := range inner {
			if conv, ok := item.(map[string]any); ok {
				p.parseConversation(conv, collection)
			}
		}
		return collection, nil
	}

	p.parseConversation(wrapper, collection)
	return collection, nil
}

func (p *Claude) parseConversation(conv map[string]any, collection *domain.Collection) {
	convID := stringField(conv, "uuid")
	if convID == "" {
		convID = stringField(conv, "id")
	}
	if convID == "" {
		convID = uuid.NewString()
	}

	title := stringField(conv, "name")
	if title == "" {
		title = stringField(conv, "title")
	}
	if title == "" {
		title = domain.DefaultTitle
	}

	turns := turnList(conv)
	turnNumber := 0

	var pendingHuman map[string]any
	for _, turn := range turns {
		switch turnRole(turn) {
		case "human", "user":
			pendingHuman = turn
		case "assistant":
			if pendingHuman == nil {
				continue
			}
			if chunk := p.buildChunk(pendingHuman, turn, convID, title, turnNumber); chunk != nil {
				collection.Add(chunk)
				turnNumber++
			}
			pendingHuman = nil
		}
	}
}

func (p *Claude) buildChunk(humanMsg, assistantMsg map[string]any, convID, title string, turnNumber int) *domain.Chunk {
	humanContent := messageContent(humanMsg)
	assistantContent := messageContent(assistantMsg)
	if humanContent == "" || assistantContent == "" {
		return nil
	}

	chunk := domain.NewChunk(domain.PlatformClaude, convID)
	chunk.Timestamp = messageTimestamp(humanMsg)
	chunk.UserMessage = humanContent
	chunk.AssistantMessage = assistantContent
	chunk.UserMessageType = messageType(humanMsg)
	chunk.AssistantMessageType = messageType(assistantMsg)
	chunk.TurnNumber = turnNumber
	chunk.ConversationTitle = title
	chunk.RawMetadata = map[string]any{
		"user_raw":      humanMsg,
		"assistant_raw": assistantMsg,
	}

	if interp := p.ExtractInterpretations(assistantMsg); len(interp) > 0 {
		chunk.AIInterpretations = interp
	}
	if sysCtx := p.ExtractSystemContext(humanMsg); len(sysCtx) > 0 {
		chunk.SystemContext = sysCtx
	}

	return chunk
}

// Validate implements Normalizer. The first conversation must carry a
// recognizable turn list, or the export must be a conversations wrapper.
// A bare id or title is not enough to claim foreign input.
func (p *Claude) Validate(data []byte) bool {
	var conversations []json.RawMessage
	if err := json.Unmarshal(data, &conversations); err == nil {
		if len(conversations) == 0 {
			return true
		}
		var first map[string]json.RawMessage
		if err := json.Unmarshal(conversations[0], &first); err != nil {
			return false
		}
		return hasTurnListField(first)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return false
	}
	if _, ok := wrapper["conversations"]; ok {
		return true
	}
	return hasTurnListField(wrapper)
}

func hasTurnListField(obj map[string]json.RawMessage) bool {
	for _, field := range claudeTurnListFields {
		if _, ok := obj[field]; ok {
			return true
		}
	}
	return false
}

// ExtractInterpretations implements Normalizer: thinking traces on the
// message itself, reasoning and user-model payloads under metadata.
func (p *Claude) ExtractInterpretations(raw map[string]any) map[string]any {
	interpretations := map[string]any{}
	if thinking, ok := raw["thinking"]; ok {
		interpretations["thinking"] = thinking
	}
	metadata, _ := raw["metadata"].(map[string]any)
	if reasoning, ok := metadata["reasoning"]; ok {
		interpretations["reasoning"] = reasoning
	}
	if userModel, ok := metadata["user_model"]; ok {
		interpretations["user_model"] = userModel
	}
	return interpretations
}

// ExtractSystemContext implements Normalizer.
func (p *Claude) ExtractSystemContext(raw map[string]any) map[string]any {
	context := map[string]any{}
	if turnRole(raw) == "system" {
		context["system_prompt"] = messageContent(raw)
	}
	metadata, _ := raw["metadata"].(map[string]any)
	if instructions, ok := metadata["system_instructions"]; ok {
		context["system_instructions"] = instructions
	}
	return context
}

func turnList(conv map[string]any) []map[string]any {
	for _, field := range claudeTurnListFields {
		raw, ok := conv[field].([]any)
		if !ok {
			continue
		}
		turns := make([]map[string]any, 0, len(raw))
		for _, item := range raw {
			if turn, ok := item.(map[string]any); ok {
				turns = append(turns, turn)
			}
		}
		return turns
	}
	return nil
}

func turnRole(turn map[string]any) string {
	role := stringField(turn, "sender")
	if role == "" {
		role = stringField(turn, "role")
	}
	return strings.ToLower(role)
}

func messageType(turn map[string]any) string {
	if t := stringField(turn, "type"); t != "" {
		return t
	}
	return "text"
}

// messageContent reads the first populated content field. A content block
// list contributes each block's text field, joined with newlines.
func messageContent(turn map[string]any) string {
	for _, field := range []string{"content", "text", "message", "body"} {
		value, ok := turn[field]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			if text := joinContentBlocks(v); text != "" {
				return text
			}
		}
	}
	return ""
}

func joinContentBlocks(blocks []any) string {
	var parts []string
	for _, block := range blocks {
		switch b := block.(type) {
		case map[string]any:
			if text := stringField(b, "text"); text != "" {
				parts = append(parts, text)
			}
		case string:
			if b != "" {
				parts = append(parts, b)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// messageTimestamp tries the known timestamp fields in order, accepting
// epoch numbers or ISO-8601 strings. Unparsable values fall through to the
// next field; nothing usable means no timestamp.
func messageTimestamp(turn map[string]any) *time.Time {
	for _, field := range []string{"timestamp", "created_at", "date", "time"} {
		value, ok := turn[field]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			if v > 0 {
				t := epochToTime(v)
				return &t
			}
		case string:
			if t, ok := parseISOTime(v); ok {
				return &t
			}
		}
	}
	return nil
}

var isoTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseISOTime accepts ISO-8601 with or without a timezone; naive values
// are taken as UTC.
func parseISOTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range isoTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
