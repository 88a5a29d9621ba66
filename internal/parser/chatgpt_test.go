package parser

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/recall/internal/domain"
)

// treeBuilder assembles mapping JSON for tree tests without drowning them
// in literals. Node ids are UUID-shaped so validation accepts the result.
type treeBuilder struct {
	nodes []string
}

func nodeID(n int) string {
	return fmt.Sprintf("%08d-0000-4000-8000-000000000000", n)
}

func (b *treeBuilder) add(n int, parent string, children []int, message string) {
	childIDs := "["
	for i, c := range children {
		if i > 0 {
			childIDs += ","
		}
		childIDs += fmt.Sprintf("%q", nodeID(c))
	}
	childIDs += "]"

	parentJSON := "null"
	if parent != "" {
		parentJSON = fmt.Sprintf("%q", parent)
	}
	if message == "" {
		message = "null"
	}
	b.nodes = append(b.nodes, fmt.Sprintf(`%q: {"id": %q, "parent": %s, "children": %s, "message": %s}`,
		nodeID(n), nodeID(n), parentJSON, childIDs, message))
}

func (b *treeBuilder) export(title string) []byte {
	mapping := ""
	for i, n := range b.nodes {
		if i > 0 {
			mapping += ","
		}
		mapping += n
	}
	return []byte(fmt.Sprintf(`[{"conversation_id": "conv-t", "title": %q, "mapping": {%s}}]`, title, mapping))
}

func message(role, text string, extra string) string {
	metadata := "{}"
	if extra != "" {
		metadata = extra
	}
	return fmt.Sprintf(`{"author": {"role": %q}, "create_time": 1704067200, "content": {"content_type": "text", "parts": [%q]}, "metadata": %s}`,
		role, text, metadata)
}

func TestChatGPTChainYieldsOneChunk(t *testing.T) {
	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), []int{3}, message("user", "hello", ""))
	b.add(3, nodeID(2), nil, message("assistant", "hi there", `{"model_slug": "gpt-4o"}`))

	collection, err := NewChatGPT().ParseExport(b.export("Chain"))
	require.NoError(t, err)
	require.Equal(t, 1, collection.Len())

	chunk := collection.Chunks[0]
	assert.Equal(t, "conv-t", chunk.ConversationID)
	assert.Equal(t, "hello", chunk.UserMessage)
	assert.Equal(t, "hi there", chunk.AssistantMessage)
	assert.Equal(t, "gpt-4o", chunk.AssistantModel)
	assert.Equal(t, 0, chunk.TurnNumber)
	assert.False(t, chunk.HasBranches)
	assert.Equal(t, "Chain", chunk.ConversationTitle)
	require.NotNil(t, chunk.Timestamp)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), chunk.Timestamp.UTC())
}

func TestChatGPTRegeneratedAnswerPairsOnce(t *testing.T) {
	// One user turn regenerated twice: the user node has two assistant
	// children. The first answer consumes the pending user turn, so the
	// second regeneration yields no chunk of its own.
	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), []int{3, 4}, message("user", "pick one", ""))
	b.add(3, nodeID(2), nil, message("assistant", "first answer", ""))
	b.add(4, nodeID(2), nil, message("assistant", "second answer", ""))

	collection, err := NewChatGPT().ParseExport(b.export("Fork"))
	require.NoError(t, err)

	var answers []string
	for _, chunk := range collection.Chunks {
		answers = append(answers, chunk.AssistantMessage)
	}
	assert.Equal(t, []string{"first answer"}, answers)
}

func TestChatGPTHasBranchesFromAssistantFork(t *testing.T) {
	// The assistant node itself forks: the user asked two different
	// follow-ups after one answer.
	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), []int{3}, message("user", "start", ""))
	b.add(3, nodeID(2), []int{4, 5}, message("assistant", "answer", ""))
	b.add(4, nodeID(3), nil, message("user", "follow-up a", ""))
	b.add(5, nodeID(3), nil, message("user", "follow-up b", ""))

	collection, err := NewChatGPT().ParseExport(b.export("Fork"))
	require.NoError(t, err)
	require.Equal(t, 1, collection.Len())
	assert.True(t, collection.Chunks[0].HasBranches)
}

func TestChatGPTBranchedUsersBothPair(t *testing.T) {
	// Two sibling user turns, each with its own assistant reply: the DFS
	// walks both branches and pairs within each.
	var b treeBuilder
	b.add(1, "", []int{2, 4}, "")
	b.add(2, nodeID(1), []int{3}, message("user", "branch a", ""))
	b.add(3, nodeID(2), nil, message("assistant", "answer a", ""))
	b.add(4, nodeID(1), []int{5}, message("user", "branch b", ""))
	b.add(5, nodeID(4), nil, message("assistant", "answer b", ""))

	collection, err := NewChatGPT().ParseExport(b.export("Fork"))
	require.NoError(t, err)
	require.Equal(t, 2, collection.Len())

	assert.Equal(t, "branch a", collection.Chunks[0].UserMessage)
	assert.Equal(t, "answer a", collection.Chunks[0].AssistantMessage)
	assert.Equal(t, 0, collection.Chunks[0].TurnNumber)
	assert.Equal(t, "branch b", collection.Chunks[1].UserMessage)
	assert.Equal(t, "answer b", collection.Chunks[1].AssistantMessage)
	assert.Equal(t, 1, collection.Chunks[1].TurnNumber)
}

func TestChatGPTSystemContextAccumulates(t *testing.T) {
	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), []int{3}, message("system", "be brief", ""))
	b.add(3, nodeID(2), []int{4}, message("system", "be brief", "")) // duplicate, must dedup
	b.add(4, nodeID(3), []int{5}, message("user", "question", ""))
	b.add(5, nodeID(4), nil, message("assistant", "answer", ""))

	collection, err := NewChatGPT().ParseExport(b.export("Sys"))
	require.NoError(t, err)
	require.Equal(t, 1, collection.Len())

	sysCtx := collection.Chunks[0].SystemContext
	require.NotNil(t, sysCtx)
	assert.Equal(t, []string{"be brief"}, sysCtx["system_interpretations"])
}

func TestChatGPTToolMessagesBuffer(t *testing.T) {
	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), []int{3}, message("user", "search something", ""))
	b.add(3, nodeID(2), []int{4}, message("tool", "results", `{"tool_name": "browser"}`))
	b.add(4, nodeID(3), []int{5}, message("assistant", "found it", ""))
	b.add(5, nodeID(4), []int{6}, message("user", "thanks, another", ""))
	b.add(6, nodeID(5), nil, message("assistant", "done", ""))

	collection, err := NewChatGPT().ParseExport(b.export("Tools"))
	require.NoError(t, err)
	require.Equal(t, 2, collection.Len())

	first := collection.Chunks[0]
	require.Len(t, first.ToolUsage, 1)
	assert.Equal(t, "browser", first.ToolUsage[0]["tool_name"])

	// The buffer resets when a chunk closes.
	assert.Empty(t, collection.Chunks[1].ToolUsage)
	assert.Equal(t, 1, collection.Chunks[1].TurnNumber)
}

func TestChatGPTUserContextBecomesInterpretation(t *testing.T) {
	metadata := `{"user_context_message_data": {"about_user_message": "gardener", "about_model_message": "be direct"}}`

	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), []int{3}, message("user", "hello", metadata))
	b.add(3, nodeID(2), nil, message("assistant", "hi", ""))

	collection, err := NewChatGPT().ParseExport(b.export("Ctx"))
	require.NoError(t, err)
	require.Equal(t, 1, collection.Len())

	chunk := collection.Chunks[0]
	require.True(t, chunk.HasInterpretations())
	userContext, ok := chunk.AIInterpretations["user_context_message_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gardener", userContext["about_user_message"])
}

func TestChatGPTUserWithoutAssistantYieldsNothing(t *testing.T) {
	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), nil, message("user", "anyone there?", ""))

	collection, err := NewChatGPT().ParseExport(b.export("Hanging"))
	require.NoError(t, err)
	assert.Equal(t, 0, collection.Len())
}

func TestChatGPTCycleTerminates(t *testing.T) {
	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), []int{3}, message("user", "loop", ""))
	b.add(3, nodeID(2), []int{2}, message("assistant", "looped", "")) // cycle back to 2

	collection, err := NewChatGPT().ParseExport(b.export("Cycle"))
	require.NoError(t, err)
	assert.Equal(t, 1, collection.Len())
}

func TestChatGPTMultimodalParts(t *testing.T) {
	msg := `{"author": {"role": "user"}, "create_time": 1704067200, "content": {"content_type": "multimodal_text", "parts": [{"asset_pointer": "file://img"}, {"text": "what is this?"}]}, "metadata": {}}`

	var b treeBuilder
	b.add(1, "", []int{2}, "")
	b.add(2, nodeID(1), []int{3}, msg)
	b.add(3, nodeID(2), nil, message("assistant", "a plant", ""))

	collection, err := NewChatGPT().ParseExport(b.export("Multimodal"))
	require.NoError(t, err)
	require.Equal(t, 1, collection.Len())
	assert.Equal(t, "what is this?", collection.Chunks[0].UserMessage)
}

func TestChatGPTValidate(t *testing.T) {
	parser := NewChatGPT()

	tests := []struct {
		name  string
		data  string
		valid bool
	}{
		{"empty list", `[]`, true},
		{"uuid mapping", `[{"mapping": {"11111111-1111-4111-8111-111111111111": {}}}]`, true},
		{"non-uuid mapping keys", `[{"mapping": {"node1": {}}}]`, false},
		{"missing mapping", `[{"title": "x"}]`, false},
		{"mapping not an object", `[{"mapping": [1, 2]}]`, false},
		{"not a list", `{"mapping": {}}`, false},
		{"not json", `no`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, parser.Validate([]byte(tt.data)))
		})
	}
}

func TestChatGPTExtractInterpretations(t *testing.T) {
	parser := NewChatGPT()

	raw := map[string]any{
		"metadata": map[string]any{
			"user_context_message_data": map[string]any{"about_user_message": "runner"},
		},
	}
	interp := parser.ExtractInterpretations(raw)
	require.Contains(t, interp, "user_context_message_data")

	assert.Empty(t, parser.ExtractInterpretations(map[string]any{"metadata": map[string]any{}}))
}

func TestChatGPTExtractSystemContext(t *testing.T) {
	parser := NewChatGPT()

	raw := map[string]any{
		"metadata": map[string]any{
			"is_visually_hidden_from_conversation": true,
			"is_user_system_message":               true,
		},
	}
	context := parser.ExtractSystemContext(raw)
	assert.Equal(t, true, context["hidden_from_conversation"])
	assert.Equal(t, true, context["user_system_message"])

	assert.Empty(t, parser.ExtractSystemContext(map[string]any{}))
}

func TestChatGPTPlatform(t *testing.T) {
	assert.Equal(t, domain.PlatformChatGPT, NewChatGPT().Platform())
}
