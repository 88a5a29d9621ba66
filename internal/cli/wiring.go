package cli

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/tessellate-ai/recall/internal/config"
	"github.com/tessellate-ai/recall/internal/embedding"
	"github.com/tessellate-ai/recall/internal/index"
)

// NewEncoder builds the configured embedding backend.
func NewEncoder(cfg *config.Config) embedding.Encoder {
	if cfg.EmbeddingBackend == config.BackendOpenAI {
		return embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      openai.EmbeddingModel(cfg.OpenAIModel),
			Dimensions: cfg.EmbeddingDimensions,
		})
	}
	return embedding.NewBGEM3(embedding.BGEM3Config{
		URL:        cfg.EmbeddingURL,
		Dimensions: cfg.EmbeddingDimensions,
	})
}

// IndexConfig maps the application config onto index client settings. A
// non-empty collection overrides the configured one.
func IndexConfig(cfg *config.Config, collection string) index.Config {
	if collection == "" {
		collection = cfg.IndexCollection
	}
	return index.Config{
		URL:        cfg.IndexURL,
		APIKey:     cfg.IndexAPIKey,
		Collection: collection,
		Timeout:    cfg.IndexTimeout,
	}
}
