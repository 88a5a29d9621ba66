package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/recall/internal/domain"
)

func writeCollection(t *testing.T, dir, name string, platform domain.Platform, messages ...string) string {
	t.Helper()
	collection := domain.NewCollection()
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, msg := range messages {
		chunk := domain.NewChunk(platform, "conv-"+name)
		chunk.UserMessage = msg
		chunk.AssistantMessage = "reply to " + msg
		chunk.TurnNumber = i
		chunk.Timestamp = &ts
		collection.Add(chunk)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, collection.SaveFile(path))
	return path
}

func TestRunMerge_PositionalFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeCollection(t, dir, "chatgpt.json", domain.PlatformChatGPT, "alpha", "beta")
	second := writeCollection(t, dir, "claude.json", domain.PlatformClaude, "gamma")
	out := filepath.Join(dir, "merged.json")

	err := runMerge([]string{first, second}, "", out, true)
	require.NoError(t, err)

	merged, err := domain.LoadCollection(out)
	require.NoError(t, err)
	require.Equal(t, 3, merged.Len())
	assert.Equal(t, "alpha", merged.Chunks[0].UserMessage)
	assert.Equal(t, "gamma", merged.Chunks[2].UserMessage)
}

func TestRunMerge_Manifest(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, "a.json", domain.PlatformChatGPT, "one")
	writeCollection(t, dir, "b.json", domain.PlatformClaude, "two")

	manifest := writeFixture(t, dir, "merge.yaml", `collections:
  - a.json
  - b.json
output: combined.json
`)

	err := runMerge(nil, manifest, "", true)
	require.NoError(t, err)

	// Relative manifest paths resolve against the manifest's directory.
	merged, err := domain.LoadCollection(filepath.Join(dir, "combined.json"))
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Len())
}

func TestRunMerge_ManifestAndArgsConflict(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFixture(t, dir, "merge.yaml", "collections:\n  - a.json\n")

	err := runMerge([]string{"x.json"}, manifest, "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestRunMerge_NothingToMerge(t *testing.T) {
	err := runMerge(nil, "", "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to merge")
}

func TestRunMerge_MissingInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "merged.json")

	err := runMerge([]string{filepath.Join(dir, "absent.json")}, "", out, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.json")
}

func TestLoadMergeManifest_EmptyCollections(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFixture(t, dir, "merge.yaml", "output: combined.json\n")

	_, err := loadMergeManifest(manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no collections")
}

func TestLoadMergeManifest_AbsolutePathsKept(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "elsewhere", "a.json")
	manifest := writeFixture(t, dir, "merge.yaml", "collections:\n  - "+abs+"\n")

	parsed, err := loadMergeManifest(manifest)
	require.NoError(t, err)
	require.Len(t, parsed.Collections, 1)
	assert.Equal(t, abs, parsed.Collections[0])
}

func TestLoadMergeManifest_BadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collections: [unclosed"), 0o600))

	_, err := loadMergeManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse manifest")
}
