package service

import (
	"fmt"
	"path/filepath"

	"github.com/tessellate-ai/recall/internal/domain"
	"github.com/tessellate-ai/recall/internal/parser"
)

// FileReport describes one normalized export file.
type FileReport struct {
	Path     string
	Platform domain.Platform
	Chunks   int
}

// ImportResult is the outcome of normalizing a set of export files.
type ImportResult struct {
	Collection *domain.Collection
	Files      []FileReport
}

// IngestService turns raw export files into chunk collections.
type IngestService struct {
	registry *parser.Registry
}

// NewIngestService creates an IngestService over a format registry.
func NewIngestService(registry *parser.Registry) *IngestService {
	return &IngestService{registry: registry}
}

// ImportFiles detects the format of each file, normalizes it into chunks,
// and merges everything into one collection in argument order. A failure
// on any file aborts the whole import.
func (s *IngestService) ImportFiles(paths []string) (*ImportResult, error) {
	merged := domain.NewCollection()
	files := make([]FileReport, 0, len(paths))

	for _, path := range paths {
		data, err := s.registry.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		normalizer, err := s.registry.Detect(filepath.Base(path), data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		collection, err := normalizer.ParseExport(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		merged.Merge(collection)
		files = append(files, FileReport{
			Path:     path,
			Platform: normalizer.Platform(),
			Chunks:   collection.Len(),
		})
	}

	return &ImportResult{Collection: merged, Files: files}, nil
}

// MergeFiles loads previously saved collections and concatenates them in
// argument order. Conversation ids are not deduplicated across inputs.
func (s *IngestService) MergeFiles(paths []string) (*domain.Collection, error) {
	merged := domain.NewCollection()
	for _, path := range paths {
		collection, err := domain.LoadCollection(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		merged.Merge(collection)
	}
	return merged, nil
}
