package parser

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessellate-ai/recall/internal/domain"
)

var _ Normalizer = (*ChatGPT)(nil)

// ChatGPT normalizes the tree-structured export: a list of conversation
// envelopes whose messages form a branching node tree keyed by UUID. Every
// branch is walked, so edited or regenerated turns all survive as chunks.
type ChatGPT struct{}

// NewChatGPT returns the tree-structured export normalizer.
func NewChatGPT() *ChatGPT { return &ChatGPT{} }

// Platform implements Normalizer.
func (p *ChatGPT) Platform() domain.Platform { return domain.PlatformChatGPT }

type chatgptConversation struct {
	ConversationID string                 `json:"conversation_id"`
	Title          string                 `json:"title"`
	CreateTime     *float64               `json:"create_time"`
	Mapping        map[string]chatgptNode `json:"mapping"`
}

type chatgptNode struct {
	ID       string          `json:"id"`
	Parent   *string         `json:"parent"`
	Children []string        `json:"children"`
	Message  *chatgptMessage `json:"message"`
}

type chatgptMessage struct {
	Author     chatgptAuthor  `json:"author"`
	CreateTime *float64       `json:"create_time"`
	Content    chatgptContent `json:"content"`
	Metadata   map[string]any `json:"metadata"`
}

type chatgptAuthor struct {
	Role string `json:"role"`
}

type chatgptContent struct {
	ContentType string            `json:"content_type"`
	Parts       []json.RawMessage `json:"parts"`
}

// ParseExport implements Normalizer.
func (p *ChatGPT) ParseExport(data []byte) (*domain.Collection, error) {
	var conversations []chatgptConversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMalformedInput, "chatgpt export decode failed", err)
	}

	collection := domain.NewCollection()
	for _, conv := range conversations {
		for _, chunk := range p.parseConversation(conv) {
			collection.Add(chunk)
		}
	}
	return collection, nil
}

// parseConversation flattens one conversation tree and reduces the message
// sequence by role. System messages accumulate into a running context,
// a user message opens a pending chunk, and the next assistant message
// closes it. Tool messages between the two are buffered as tool usage.
func (p *ChatGPT) parseConversation(conv chatgptConversation) []*domain.Chunk {
	convID := conv.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	title := conv.Title
	if title == "" {
		title = domain.DefaultTitle
	}

	var convStart *time.Time
	if conv.CreateTime != nil {
		t := epochToTime(*conv.CreateTime)
		convStart = &t
	}

	var (
		chunks      []*domain.Chunk
		pendingUser *treeMessage
		systemNotes []string
		userContext map[string]any
		toolBuffer  []map[string]any
		turn        int
	)

	for _, msg := range flattenTree(conv.Mapping) {
		switch msg.role {
		case "system":
			if msg.content != "" && !containsString(systemNotes, msg.content) {
				systemNotes = append(systemNotes, msg.content)
			}

		case "user":
			opened := msg
			pendingUser = &opened
			if uc, ok := msg.metadata["user_context_message_data"].(map[string]any); ok && len(uc) > 0 {
				userContext = uc
			}

		case "assistant":
			if pendingUser != nil {
				chunk := domain.NewChunk(domain.PlatformChatGPT, convID)
				chunk.Timestamp = pendingUser.timestamp
				chunk.ConversationStart = convStart
				chunk.UserMessage = pendingUser.content
				chunk.UserMessageType = pendingUser.contentType
				chunk.AssistantMessage = msg.content
				chunk.AssistantMessageType = msg.contentType
				chunk.AssistantModel, _ = msg.metadata["model_slug"].(string)
				chunk.TurnNumber = turn
				chunk.HasBranches = msg.childCount > 1
				chunk.ConversationTitle = title
				chunk.RawMetadata = map[string]any{
					"user_metadata":      pendingUser.metadata,
					"assistant_metadata": msg.metadata,
				}

				if len(userContext) > 0 {
					chunk.AIInterpretations = map[string]any{
						"user_context_message_data": userContext,
					}
				}
				if len(systemNotes) > 0 {
					notes := make([]string, len(systemNotes))
					copy(notes, systemNotes)
					chunk.SystemContext = map[string]any{
						"system_interpretations": notes,
					}
				}
				if len(toolBuffer) > 0 {
					chunk.ToolUsage = toolBuffer
				}

				if chunk.HasContent() {
					chunks = append(chunks, chunk)
					turn++
				}
			}

			// System context and user-context data carry over to later
			// turns; the tool buffer does not.
			pendingUser = nil
			toolBuffer = nil

		case "tool":
			toolBuffer = append(toolBuffer, msg.metadata)
		}
	}

	return chunks
}

// Validate implements Normalizer. An empty list is a valid (empty) export;
// a non-empty one must open with a conversation whose mapping is keyed by
// UUID-shaped ids.
func (p *ChatGPT) Validate(data []byte) bool {
	var conversations []json.RawMessage
	if err := json.Unmarshal(data, &conversations); err != nil {
		return false
	}
	if len(conversations) == 0 {
		return true
	}

	var first struct {
		Mapping map[string]json.RawMessage `json:"mapping"`
	}
	if err := json.Unmarshal(conversations[0], &first); err != nil || first.Mapping == nil {
		return false
	}
	for key := range first.Mapping {
		if len(key) == 36 && strings.Count(key, "-") == 4 {
			return true
		}
	}
	return false
}

// ExtractInterpretations implements Normalizer. The interesting payload is
// the side-channel user profile the platform attaches to user messages.
func (p *ChatGPT) ExtractInterpretations(raw map[string]any) map[string]any {
	interpretations := map[string]any{}
	metadata, _ := raw["metadata"].(map[string]any)
	if userContext, ok := metadata["user_context_message_data"].(map[string]any); ok && len(userContext) > 0 {
		interpretations["user_context_message_data"] = userContext
	}
	return interpretations
}

// ExtractSystemContext implements Normalizer.
func (p *ChatGPT) ExtractSystemContext(raw map[string]any) map[string]any {
	context := map[string]any{}
	metadata, _ := raw["metadata"].(map[string]any)
	if hidden, ok := metadata["is_visually_hidden_from_conversation"].(bool); ok && hidden {
		context["hidden_from_conversation"] = true
	}
	if userSystem, ok := metadata["is_user_system_message"].(bool); ok && userSystem {
		context["user_system_message"] = true
	}
	return context
}

// treeMessage is one flattened node: the message fields the role reduction
// needs plus the node's child count for branch detection.
type treeMessage struct {
	role        string
	content     string
	contentType string
	metadata    map[string]any
	timestamp   *time.Time
	childCount  int
}

// flattenTree orders the node tree depth-first from the root, following
// every child edge. The visited set terminates traversal even when a
// damaged export contains cycles.
func flattenTree(mapping map[string]chatgptNode) []treeMessage {
	rootID := ""
	for id, node := range mapping {
		if node.Parent == nil {
			rootID = id
			break
		}
	}
	if rootID == "" {
		return nil
	}

	var (
		ordered []treeMessage
		visited = make(map[string]bool, len(mapping))
		stack   = []string{rootID}
	)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		node, ok := mapping[id]
		if !ok {
			continue
		}
		if node.Message != nil {
			ordered = append(ordered, messageData(node))
		}

		// Push children in reverse so the first child pops first.
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}

	return ordered
}

func messageData(node chatgptNode) treeMessage {
	message := node.Message
	msg := treeMessage{
		role:        message.Author.Role,
		contentType: message.Content.ContentType,
		metadata:    message.Metadata,
		content:     extractParts(message.Content),
		childCount:  len(node.Children),
	}
	if msg.role == "" {
		msg.role = "unknown"
	}
	if msg.contentType == "" {
		msg.contentType = "text"
	}
	if msg.metadata == nil {
		msg.metadata = map[string]any{}
	}
	if message.CreateTime != nil && *message.CreateTime > 0 {
		t := epochToTime(*message.CreateTime)
		msg.timestamp = &t
	}
	return msg
}

// extractParts joins a message's content parts. Plain text parts join with
// newlines; multimodal parts contribute only their inner text field, so
// image references drop out.
func extractParts(content chatgptContent) string {
	if len(content.Parts) == 0 {
		return ""
	}

	if content.ContentType == "multimodal_text" {
		var b strings.Builder
		for _, part := range content.Parts {
			var inner struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(part, &inner); err == nil && inner.Text != "" {
				b.WriteString(inner.Text)
				continue
			}
			var s string
			if err := json.Unmarshal(part, &s); err == nil {
				b.WriteString(s)
			}
		}
		return strings.TrimSpace(b.String())
	}

	var pieces []string
	for _, part := range content.Parts {
		var s string
		if err := json.Unmarshal(part, &s); err == nil {
			if s != "" {
				pieces = append(pieces, s)
			}
			continue
		}
		trimmed := strings.TrimSpace(string(part))
		if trimmed != "" && trimmed != "null" {
			pieces = append(pieces, trimmed)
		}
	}
	return strings.TrimSpace(strings.Join(pieces, "\n"))
}

func epochToTime(epoch float64) time.Time {
	seconds, frac := math.Modf(epoch)
	return time.Unix(int64(seconds), int64(frac*1e9)).UTC()
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
