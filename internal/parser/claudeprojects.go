package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessellate-ai/recall/internal/domain"
)

var _ Normalizer = (*ClaudeProjects)(nil)

// ClaudeProjects normalizes the projects export: a list mixing account
// memory records with project records. Each record kind becomes its own
// chunk shape so memory, project instructions, and attached documents are
// all independently retrievable.
type ClaudeProjects struct{}

// NewClaudeProjects returns the projects export normalizer.
func NewClaudeProjects() *ClaudeProjects { return &ClaudeProjects{} }

// Platform implements Normalizer.
func (p *ClaudeProjects) Platform() domain.Platform { return domain.PlatformClaudeProjects }

// ParseExport implements Normalizer.
func (p *ClaudeProjects) ParseExport(data []byte) (*domain.Collection, error) {
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMalformedInput, "projects export decode failed", err)
	}

	collection := domain.NewCollection()
	for _, item := range items {
		if _, ok := item["conversations_memory"]; ok {
			if chunk := p.memoryChunk(item); chunk != nil {
				collection.Add(chunk)
			}
			continue
		}
		for _, chunk := range p.projectChunks(item) {
			collection.Add(chunk)
		}
	}
	return collection, nil
}

// memoryChunk turns the account-wide memory blob into one chunk. The user
// side is a fixed semantic label so the blob embeds alongside real dialogue.
func (p *ClaudeProjects) memoryChunk(item map[string]any) *domain.Chunk {
	memory := stringField(item, "conversations_memory")
	if memory == "" {
		return nil
	}
	accountUUID := stringField(item, "account_uuid")

	now := time.Now().UTC()
	chunk := domain.NewChunk(domain.PlatformClaudeProjects, "memory_"+accountUUID)
	chunk.Timestamp = &now
	chunk.UserMessage = "User Context and Memory across all Claude conversations"
	chunk.AssistantMessage = memory
	chunk.UserMessageType = domain.MessageTypeMemoryContext
	chunk.AssistantMessageType = domain.MessageTypeMemoryContent
	chunk.AIInterpretations = map[string]any{
		"memory_type":    "user_context",
		"account_uuid":   accountUUID,
		"is_user_memory": true,
	}
	chunk.SystemContext = map[string]any{
		"data_type": "conversations_memory",
	}
	chunk.ConversationTitle = "User Memory"
	return chunk
}

// projectChunks emits one overview chunk for the project plus one chunk
// per attached document with non-empty content.
func (p *ClaudeProjects) projectChunks(project map[string]any) []*domain.Chunk {
	projectUUID := stringField(project, "uuid")
	if projectUUID == "" {
		projectUUID = uuid.NewString()
	}
	name := stringField(project, "name")
	if name == "" {
		name = "Untitled Project"
	}
	createdAt := isoTimestampField(project, "created_at")

	chunks := []*domain.Chunk{p.overviewChunk(project, projectUUID, name, createdAt)}

	docs, _ := project["docs"].([]any)
	for _, item := range docs {
		doc, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if chunk := p.documentChunk(doc, projectUUID, name, createdAt); chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func (p *ClaudeProjects) overviewChunk(project map[string]any, projectUUID, name string, createdAt *time.Time) *domain.Chunk {
	description := stringField(project, "description")
	promptTemplate := stringField(project, "prompt_template")
	updatedAt := isoTimestampField(project, "updated_at")
	creator, _ := project["creator"].(map[string]any)
	docs, _ := project["docs"].([]any)

	label := fmt.Sprintf("[PROJECT: %s]", name)
	if description != "" {
		label += " " + description
	}
	instructions := promptTemplate
	if instructions == "" {
		instructions = "No custom instructions"
	}

	chunk := domain.NewChunk(domain.PlatformClaudeProjects, projectUUID)
	chunk.Timestamp = timestampOrNow(createdAt)
	chunk.UserMessage = label
	chunk.AssistantMessage = instructions
	chunk.UserMessageType = domain.MessageTypeProjectDescription
	chunk.AssistantMessageType = domain.MessageTypeProjectInstructions
	chunk.AIInterpretations = map[string]any{
		"project_uuid":       projectUUID,
		"is_private":         boolField(project, "is_private"),
		"is_starter_project": boolField(project, "is_starter_project"),
		"doc_count":          len(docs),
		"content_type":       "project_overview",
	}
	chunk.SystemContext = map[string]any{
		"created_at":   isoOrNil(createdAt),
		"updated_at":   isoOrNil(updatedAt),
		"creator_name": stringField(creator, "full_name"),
		"creator_uuid": stringField(creator, "uuid"),
	}
	chunk.ConversationTitle = name
	return chunk
}

func (p *ClaudeProjects) documentChunk(doc map[string]any, projectUUID, projectName string, projectCreatedAt *time.Time) *domain.Chunk {
	content := stringField(doc, "content")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	docUUID := stringField(doc, "uuid")
	if docUUID == "" {
		docUUID = uuid.NewString()
	}
	filename := stringField(doc, "filename")
	if filename == "" {
		filename = "Untitled Document"
	}
	docCreatedAt := isoTimestampField(doc, "created_at")

	timestamp := docCreatedAt
	if timestamp == nil {
		timestamp = projectCreatedAt
	}

	chunk := domain.NewChunk(domain.PlatformClaudeProjects, fmt.Sprintf("%s_doc_%s", projectUUID, docUUID))
	chunk.Timestamp = timestampOrNow(timestamp)
	chunk.UserMessage = fmt.Sprintf("[PROJECT: %s] [DOC: %s]", projectName, filename)
	chunk.AssistantMessage = content
	chunk.UserMessageType = domain.MessageTypeDocumentReference
	chunk.AssistantMessageType = domain.MessageTypeDocumentContent
	chunk.AIInterpretations = map[string]any{
		"project_uuid":   projectUUID,
		"document_uuid":  docUUID,
		"parent_project": projectName,
		"content_type":   "project_document",
	}
	chunk.SystemContext = map[string]any{
		"filename":   filename,
		"created_at": isoOrNil(docCreatedAt),
	}
	chunk.ConversationTitle = fmt.Sprintf("%s - %s", projectName, filename)
	return chunk
}

// Validate implements Normalizer. A projects export is a non-empty list
// opening with either the memory record or a project record.
func (p *ClaudeProjects) Validate(data []byte) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil || len(items) == 0 {
		return false
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(items[0], &first); err != nil {
		return false
	}
	if _, ok := first["conversations_memory"]; ok {
		return true
	}
	_, hasUUID := first["uuid"]
	_, hasName := first["name"]
	return hasUUID && hasName
}

// ExtractInterpretations implements Normalizer.
func (p *ClaudeProjects) ExtractInterpretations(raw map[string]any) map[string]any {
	interpretations := map[string]any{}
	if id, ok := raw["uuid"]; ok {
		interpretations["project_uuid"] = id
	}
	if private, ok := raw["is_private"]; ok {
		interpretations["is_private"] = private
	}
	if starter, ok := raw["is_starter_project"]; ok {
		interpretations["is_starter_project"] = starter
	}
	return interpretations
}

// ExtractSystemContext implements Normalizer.
func (p *ClaudeProjects) ExtractSystemContext(raw map[string]any) map[string]any {
	context := map[string]any{}
	for _, field := range []string{"created_at", "updated_at", "creator"} {
		if value, ok := raw[field]; ok {
			context[field] = value
		}
	}
	return context
}

func isoTimestampField(obj map[string]any, key string) *time.Time {
	value := stringField(obj, key)
	if value == "" {
		return nil
	}
	if t, ok := parseISOTime(value); ok {
		return &t
	}
	return nil
}

func timestampOrNow(t *time.Time) *time.Time {
	if t != nil {
		return t
	}
	now := time.Now().UTC()
	return &now
}

func isoOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func boolField(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}
