package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform identifies the source system an export came from.
type Platform string

const (
	PlatformChatGPT        Platform = "chatgpt"
	PlatformClaude         Platform = "claude"
	PlatformClaudeProjects Platform = "claude_projects"
)

// Message type tags for synthetic chunk kinds that carry no dialogue.
const (
	MessageTypeMemoryContext       = "memory_context"
	MessageTypeMemoryContent       = "memory_content"
	MessageTypeProjectDescription  = "project_description"
	MessageTypeProjectInstructions = "project_instructions"
	MessageTypeDocumentReference   = "document_reference"
	MessageTypeDocumentContent     = "document_content"
)

// DefaultTitle is used when an export carries no conversation title.
const DefaultTitle = "Untitled"

// Chunk is the normalized unit of retrievable content. Every platform
// normalizer emits this shape, enabling cross-platform retrieval. The JSON
// field names are the persisted collection format.
type Chunk struct {
	ChunkID        string   `json:"chunk_id"`
	ConversationID string   `json:"conversation_id"`
	Platform       Platform `json:"platform"`

	Timestamp         *time.Time `json:"timestamp"`
	ConversationStart *time.Time `json:"conversation_start,omitempty"`

	UserMessage          string `json:"user_message"`
	AssistantMessage     string `json:"assistant_message"`
	UserMessageType      string `json:"user_message_type,omitempty"`
	AssistantMessageType string `json:"assistant_message_type,omitempty"`

	// AIInterpretations holds the platform's model of the user: reasoning
	// traces, inferred-profile fields, or structural markers for synthetic
	// chunks. SystemContext holds prompt/instruction-level metadata.
	AIInterpretations map[string]any   `json:"ai_interpretations,omitempty"`
	SystemContext     map[string]any   `json:"system_context,omitempty"`
	ToolUsage         []map[string]any `json:"tool_usage,omitempty"`

	TurnNumber        int    `json:"turn_number"`
	HasBranches       bool   `json:"has_branches,omitempty"`
	ConversationTitle string `json:"conversation_title"`
	AssistantModel    string `json:"assistant_model,omitempty"`

	// RawMetadata keeps the platform's original message metadata for
	// debugging. May be discarded for size.
	RawMetadata map[string]any `json:"raw_metadata,omitempty"`
}

// NewChunk creates a Chunk with a generated id and default title.
func NewChunk(platform Platform, conversationID string) *Chunk {
	return &Chunk{
		ChunkID:           uuid.NewString(),
		ConversationID:    conversationID,
		Platform:          platform,
		ConversationTitle: DefaultTitle,
	}
}

// HasContent reports whether the chunk carries any message text. Chunks
// where both sides are empty are invalid and must be dropped.
func (c *Chunk) HasContent() bool {
	return c.UserMessage != "" || c.AssistantMessage != ""
}

// HasInterpretations reports whether the platform attached any
// interpretation payload.
func (c *Chunk) HasInterpretations() bool {
	return len(c.AIInterpretations) > 0
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ChunkID == "" {
		return fmt.Errorf("chunk ChunkID is required")
	}

	if c.ConversationID == "" {
		return fmt.Errorf("chunk ConversationID is required")
	}

	if !isValidPlatform(c.Platform) {
		return fmt.Errorf("chunk Platform is invalid: %s", c.Platform)
	}

	if !c.HasContent() {
		return fmt.Errorf("chunk has neither a user nor an assistant message")
	}

	if c.TurnNumber < 0 {
		return fmt.Errorf("chunk TurnNumber must not be negative")
	}

	return nil
}

func isValidPlatform(p Platform) bool {
	switch p {
	case PlatformChatGPT, PlatformClaude, PlatformClaudeProjects:
		return true
	default:
		return false
	}
}

// EmbedMode selects how much of a chunk is rendered into embedding text.
type EmbedMode string

const (
	// EmbedModeBalanced renders user + truncated assistant + interpretations.
	EmbedModeBalanced EmbedMode = "balanced"
	// EmbedModeUserFocused renders user message + interpretations only.
	EmbedModeUserFocused EmbedMode = "user_focused"
	// EmbedModeMinimal renders the user message only.
	EmbedModeMinimal EmbedMode = "minimal"
	// EmbedModeFull renders everything including full responses and tools.
	EmbedModeFull EmbedMode = "full"
)

// maxAssistantChars bounds the assistant portion in balanced mode; longer
// responses keep their first and last halves around a gap marker.
const maxAssistantChars = 3000

// EmbeddingText renders the chunk into text for the embedding model. The
// structured section markers ([TOPIC:], [RESPONSE], ...) help sparse
// lexical embeddings cluster by subject.
func (c *Chunk) EmbeddingText(mode EmbedMode) string {
	var parts []string

	if c.ConversationTitle != "" && c.ConversationTitle != DefaultTitle {
		parts = append(parts, fmt.Sprintf("[TOPIC: %s]", c.ConversationTitle))
	}

	if c.UserMessage != "" {
		if mode == EmbedModeMinimal {
			return c.UserMessage
		}
		parts = append(parts, c.UserMessage)
	}

	if c.AssistantMessage != "" && (mode == EmbedModeBalanced || mode == EmbedModeFull) {
		assistant := c.AssistantMessage
		if mode == EmbedModeBalanced {
			assistant = truncateMiddle(assistant, maxAssistantChars)
		}
		parts = append(parts, "[RESPONSE] "+assistant)
	}

	if interp := c.interpretationText(); len(interp) > 0 {
		parts = append(parts, interp...)
	}

	if notes := c.systemContextText(); notes != "" {
		parts = append(parts, "[SYSTEM] "+notes)
	}

	if mode == EmbedModeFull {
		if tools := c.toolUsageText(); tools != "" {
			parts = append(parts, "[TOOLS] "+tools)
		}
	}

	return strings.Join(parts, "\n\n")
}

func (c *Chunk) interpretationText() []string {
	if len(c.AIInterpretations) == 0 {
		return nil
	}

	var parts []string
	switch c.Platform {
	case PlatformChatGPT:
		userContext, _ := c.AIInterpretations["user_context_message_data"].(map[string]any)
		if about, _ := userContext["about_user_message"].(string); about != "" {
			parts = append(parts, "[AI_UNDERSTANDING] "+about)
		}
		if about, _ := userContext["about_model_message"].(string); about != "" {
			parts = append(parts, "[AI_NOTES] "+about)
		}
	case PlatformClaude:
		if thinking, _ := c.AIInterpretations["thinking"].(string); thinking != "" {
			parts = append(parts, "[AI_THINKING] "+thinking)
		}
		if userModel, _ := c.AIInterpretations["user_model"].(string); userModel != "" {
			parts = append(parts, "[AI_UNDERSTANDING] "+userModel)
		}
	}
	return parts
}

func (c *Chunk) systemContextText() string {
	if len(c.SystemContext) == 0 {
		return ""
	}

	keys := make([]string, 0, len(c.SystemContext))
	for key := range c.SystemContext {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var notes []string
	for _, key := range keys {
		switch v := c.SystemContext[key].(type) {
		case string:
			if v != "" {
				notes = append(notes, key+": "+v)
			}
		case []string:
			if len(v) > 0 {
				notes = append(notes, key+": "+strings.Join(v, ", "))
			}
		case []any:
			if len(v) > 0 {
				items := make([]string, len(v))
				for i, item := range v {
					items[i] = fmt.Sprint(item)
				}
				notes = append(notes, key+": "+strings.Join(items, ", "))
			}
		}
	}
	return strings.Join(notes, " | ")
}

func (c *Chunk) toolUsageText() string {
	var summary []string
	for _, tool := range c.ToolUsage {
		if groups, ok := tool["search_result_groups"].([]any); ok {
			var domains []string
			for _, g := range groups {
				if gm, ok := g.(map[string]any); ok {
					if domain, _ := gm["domain"].(string); domain != "" {
						domains = append(domains, domain)
					}
				}
			}
			summary = append(summary, "searched: "+strings.Join(domains, ", "))
		} else if name, ok := tool["tool_name"].(string); ok {
			summary = append(summary, "used: "+name)
		}
	}
	return strings.Join(summary, " | ")
}

// truncateMiddle keeps the first and last halves of s when it exceeds max
// runes, joined by a gap marker.
func truncateMiddle(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	half := max / 2
	return string(runes[:half]) + "\n[...]\n" + string(runes[len(runes)-half:])
}
