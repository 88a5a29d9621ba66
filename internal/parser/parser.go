// Package parser converts raw chat export files into normalized chunk
// collections. Each supported export shape has its own Normalizer; the
// Registry detects which one applies and dispatches to it.
package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/tessellate-ai/recall/internal/domain"
)

// Normalizer converts one platform's export shape into chunks.
type Normalizer interface {
	// Platform identifies the export format this normalizer produces.
	Platform() domain.Platform

	// Validate reports whether data plausibly matches this normalizer's
	// format. It must tolerate arbitrary foreign input.
	Validate(data []byte) bool

	// ParseExport converts a raw export into a chunk collection.
	ParseExport(data []byte) (*domain.Collection, error)

	// ExtractInterpretations pulls the platform's model-of-the-user
	// payload out of one raw message record.
	ExtractInterpretations(raw map[string]any) map[string]any

	// ExtractSystemContext pulls prompt- and instruction-level metadata
	// out of one raw message record.
	ExtractSystemContext(raw map[string]any) map[string]any
}

// DefaultMaxInputSize bounds how large an export file the registry will
// read. Exports beyond this are rejected before any JSON work happens.
const DefaultMaxInputSize int64 = 500 << 20 // 500 MB

type registration struct {
	normalizer Normalizer
	extensions []string
}

// Registry holds the registered normalizers in detection order.
type Registry struct {
	entries []registration
	maxSize int64
}

// NewRegistry returns a registry with every supported normalizer
// registered. Registration order matters: detection tries normalizers in
// this order and the first match wins.
func NewRegistry() *Registry {
	r := &Registry{maxSize: DefaultMaxInputSize}
	r.Register(NewChatGPT(), ".json")
	r.Register(NewClaude(), ".json")
	r.Register(NewClaudeProjects(), ".json")
	return r
}

// Register adds a normalizer for the given file extensions. With no
// extensions the normalizer claims ".json".
func (r *Registry) Register(n Normalizer, extensions ...string) {
	if len(extensions) == 0 {
		extensions = []string{".json"}
	}
	lowered := make([]string, len(extensions))
	for i, ext := range extensions {
		lowered[i] = strings.ToLower(ext)
	}
	r.entries = append(r.entries, registration{normalizer: n, extensions: lowered})
}

// SetMaxInputSize overrides the input size ceiling. Non-positive values
// restore the default.
func (r *Registry) SetMaxInputSize(n int64) {
	if n <= 0 {
		n = DefaultMaxInputSize
	}
	r.maxSize = n
}

// ReadFile loads an export file once, enforcing the size ceiling and
// rejecting input that is not well-formed JSON. Every later step works on
// the returned bytes.
func (r *Registry) ReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > r.maxSize {
		return nil, domain.ErrInputTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, domain.ErrMalformedInput
	}
	return data, nil
}

// Detect picks the normalizer for data. The first pass only asks
// normalizers whose registered extensions match the file name; if none of
// those validate, a second pass asks every normalizer regardless of
// extension. Returns ErrNoSuitableFormat when nothing claims the input.
func (r *Registry) Detect(filename string, data []byte) (Normalizer, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	for _, entry := range r.entries {
		if !hasExtension(entry.extensions, ext) {
			continue
		}
		if entry.normalizer.Validate(data) {
			return entry.normalizer, nil
		}
	}

	for _, entry := range r.entries {
		if entry.normalizer.Validate(data) {
			return entry.normalizer, nil
		}
	}

	return nil, domain.ErrNoSuitableFormat
}

// ParseFile reads, detects, and parses an export file in one step.
func (r *Registry) ParseFile(path string) (*domain.Collection, error) {
	data, err := r.ReadFile(path)
	if err != nil {
		return nil, err
	}

	normalizer, err := r.Detect(path, data)
	if err != nil {
		return nil, err
	}

	return normalizer.ParseExport(data)
}

func hasExtension(extensions []string, ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}
