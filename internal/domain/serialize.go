package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// persistedChunk is a Chunk whose interpretation payload may be replaced by
// a reference into the collection file's interpretation table.
type persistedChunk struct {
	Chunk
	AIInterpretationRef string `json:"ai_interpretation_ref,omitempty"`
}

type collectionMetadata struct {
	TotalChunks           int           `json:"total_chunks"`
	Platforms             []Platform    `json:"platforms"`
	DateRange             [2]*time.Time `json:"date_range"`
	CreatedAt             time.Time     `json:"created_at"`
	UniqueInterpretations int           `json:"unique_interpretations"`
}

type collectionFile struct {
	Chunks          []persistedChunk          `json:"chunks"`
	Interpretations map[string]map[string]any `json:"interpretations,omitempty"`
	Metadata        collectionMetadata        `json:"metadata"`
}

// Marshal serializes the collection with interpretation deduplication: each
// distinct ai_interpretations mapping is stored once in a lookup table and
// chunks keep only a reference. Most corpora share very few distinct
// interpretation payloads across thousands of chunks, so this cuts file
// size substantially.
func (c *Collection) Marshal() ([]byte, error) {
	refs := make(map[string]string)
	store := make(map[string]map[string]any)

	chunks := make([]persistedChunk, 0, len(c.Chunks))
	for _, chunk := range c.Chunks {
		pc := persistedChunk{Chunk: *chunk}

		if chunk.HasInterpretations() {
			// json.Marshal sorts map keys, so equal mappings always
			// produce the same key.
			canonical, err := json.Marshal(chunk.AIInterpretations)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize interpretations: %w", err)
			}

			ref, ok := refs[string(canonical)]
			if !ok {
				ref = fmt.Sprintf("interp_%d", len(refs))
				refs[string(canonical)] = ref
				store[ref] = chunk.AIInterpretations
			}

			pc.AIInterpretationRef = ref
			pc.AIInterpretations = nil
		}

		chunks = append(chunks, pc)
	}

	earliest, latest := c.DateRange()
	file := collectionFile{
		Chunks:          chunks,
		Interpretations: store,
		Metadata: collectionMetadata{
			TotalChunks:           len(c.Chunks),
			Platforms:             c.Platforms(),
			DateRange:             [2]*time.Time{earliest, latest},
			CreatedAt:             time.Now().UTC(),
			UniqueInterpretations: len(store),
		},
	}

	return json.Marshal(file)
}

// UnmarshalCollection is the exact inverse of Marshal: interpretation
// references are resolved back into full mappings.
func UnmarshalCollection(data []byte) (*Collection, error) {
	var file collectionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, NewDomainErrorWithCause(ErrCodeMalformedInput, "collection file is not valid", err)
	}

	collection := NewCollection()
	for i := range file.Chunks {
		pc := file.Chunks[i]
		chunk := pc.Chunk

		if pc.AIInterpretationRef != "" {
			interp, ok := file.Interpretations[pc.AIInterpretationRef]
			if !ok {
				interp = map[string]any{}
			}
			chunk.AIInterpretations = interp
		}

		collection.Add(&chunk)
	}

	return collection, nil
}

// SaveFile writes the collection to path with interpretation deduplication.
func (c *Collection) SaveFile(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write collection file: %w", err)
	}

	return nil
}

// LoadCollection reads a collection previously written by SaveFile.
func LoadCollection(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}

	return UnmarshalCollection(data)
}
