// Package embedding produces the dense and sparse query/document
// representations the index service stores and searches. Two backends
// exist: the BGE-M3 sidecar (dense + sparse) and the OpenAI embeddings
// API (dense only).
package embedding

import (
	"context"
	"errors"

	"github.com/tessellate-ai/recall/internal/domain"
)

var (
	// ErrEmptyText is returned when there is nothing to encode.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when a backend yields a dense vector
	// of unexpected width.
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// Encoder turns text into retrieval vectors. Sparse is nil for backends
// that only produce dense embeddings; callers must then skip the sparse
// search leg. Implementations are constructed once and are safe for
// concurrent use.
type Encoder interface {
	// Encode returns the dense embedding and, when the backend supports
	// it, the sparse lexical weights for text.
	Encode(ctx context.Context, text string) ([]float32, *domain.SparseVector, error)

	// Dimensions reports the dense vector width this encoder produces.
	Dimensions() int
}
