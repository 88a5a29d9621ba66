package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Embedding backend names accepted by EmbeddingBackend.
const (
	BackendBGEM3  = "bgem3"
	BackendOpenAI = "openai"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8000"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// APIKey protects the search endpoints when set. Empty means the
	// daemon serves unauthenticated, which suits local use.
	APIKey       string `envconfig:"API_KEY"`
	MaxBodyBytes int64  `envconfig:"MAX_BODY_BYTES" default:"5242880"`

	IndexURL        string        `envconfig:"INDEX_URL" required:"true"`
	IndexAPIKey     string        `envconfig:"INDEX_API_KEY"`
	IndexCollection string        `envconfig:"INDEX_COLLECTION" default:"recall-chunks"`
	IndexTimeout    time.Duration `envconfig:"INDEX_TIMEOUT" default:"60s"`

	EmbeddingBackend    string `envconfig:"EMBEDDING_BACKEND" default:"bgem3"`
	EmbeddingURL        string `envconfig:"EMBEDDING_URL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL"`

	// MaxInputBytes caps the size of export files accepted for import.
	MaxInputBytes int64 `envconfig:"MAX_INPUT_BYTES" default:"524288000"`

	SentryDSN        string  `envconfig:"SENTRY_DSN"`
	SentryEnv        string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"0.1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RECALL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.EmbeddingBackend {
	case BackendBGEM3:
		if c.EmbeddingURL == "" {
			return fmt.Errorf("RECALL_EMBEDDING_URL is required for the %s backend", BackendBGEM3)
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("RECALL_OPENAI_API_KEY is required for the %s backend", BackendOpenAI)
		}
	default:
		return fmt.Errorf("unknown embedding backend %q (want %s or %s)", c.EmbeddingBackend, BackendBGEM3, BackendOpenAI)
	}
	return nil
}

func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
