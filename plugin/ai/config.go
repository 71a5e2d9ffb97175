package ai

import (
	"errors"

	"github.com/hrygo/snapnote/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Vision    VisionConfig
	Embedding EmbeddingConfig
}

// VisionConfig represents multimodal inference configuration.
type VisionConfig struct {
	Provider    string // anthropic, openai
	Model       string // claude-sonnet-4-20250514
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 4096
	Temperature float32 // default: 1
	// RequestsPerSecond limits outgoing inference calls; 0 disables limiting.
	RequestsPerSecond float64
	// MaxImageDimension is the longest edge sent to the model; larger images are downsized.
	MaxImageDimension int
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider       string // openai (any OpenAI-compatible endpoint)
	Model          string // Xenova/bge-large-en-v1.5
	Dimensions     int    // 1024
	APIKey         string
	BaseURL        string
	MaxConcurrency int // in-flight model calls, 1 serializes
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Vision: VisionConfig{
			Provider:          p.AIVisionProvider,
			Model:             p.AIVisionModel,
			MaxTokens:         p.AIVisionMaxTokens,
			Temperature:       1,
			RequestsPerSecond: p.AIVisionRPS,
			MaxImageDimension: DefaultMaxImageDimension,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          p.AIEmbeddingModel,
			Dimensions:     p.AIEmbeddingDimensions,
			APIKey:         p.AIEmbeddingAPIKey,
			BaseURL:        p.AIEmbeddingBaseURL,
			MaxConcurrency: p.AIEmbeddingConcurrency,
		},
	}

	switch p.AIVisionProvider {
	case "anthropic":
		cfg.Vision.APIKey = p.AIAnthropicAPIKey
		cfg.Vision.BaseURL = p.AIAnthropicBaseURL
	case "openai":
		cfg.Vision.APIKey = p.AIOpenAIAPIKey
		cfg.Vision.BaseURL = p.AIOpenAIBaseURL
	}

	return cfg
}

// Validate validates the configuration.
// A missing vision credential is not a configuration error; it surfaces per request.
func (c *Config) Validate() error {
	switch c.Vision.Provider {
	case "anthropic", "openai":
	case "":
		return errors.New("vision provider is required")
	default:
		return errors.New("unsupported vision provider: " + c.Vision.Provider)
	}

	if c.Vision.Model == "" {
		return errors.New("vision model is required")
	}

	if c.Embedding.Model == "" {
		return errors.New("embedding model is required")
	}

	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}

	return nil
}
