package ai

import (
	"testing"

	"github.com/hrygo/snapnote/internal/profile"
)

// TestNewConfigFromProfile_Anthropic tests the default vision provider.
func TestNewConfigFromProfile_Anthropic(t *testing.T) {
	prof := &profile.Profile{
		AIVisionProvider:       "anthropic",
		AIVisionModel:          "claude-sonnet-4-20250514",
		AIVisionMaxTokens:      4096,
		AIAnthropicAPIKey:      "ant-key",
		AIAnthropicBaseURL:     "https://api.anthropic.com",
		AIOpenAIAPIKey:         "openai-key",
		AIEmbeddingAPIKey:      "embed-key",
		AIEmbeddingBaseURL:     "http://localhost:8080/v1",
		AIEmbeddingModel:       "Xenova/bge-large-en-v1.5",
		AIEmbeddingDimensions:  1024,
		AIEmbeddingConcurrency: 2,
	}

	cfg := NewConfigFromProfile(prof)

	if cfg.Vision.APIKey != "ant-key" {
		t.Errorf("Expected Vision.APIKey=ant-key, got %s", cfg.Vision.APIKey)
	}
	if cfg.Vision.BaseURL != "https://api.anthropic.com" {
		t.Errorf("Expected Vision.BaseURL=https://api.anthropic.com, got %s", cfg.Vision.BaseURL)
	}
	if cfg.Vision.MaxTokens != 4096 {
		t.Errorf("Expected Vision.MaxTokens=4096, got %d", cfg.Vision.MaxTokens)
	}
	if cfg.Vision.Temperature != 1 {
		t.Errorf("Expected Vision.Temperature=1, got %f", cfg.Vision.Temperature)
	}
	if cfg.Embedding.APIKey != "embed-key" {
		t.Errorf("Expected Embedding.APIKey=embed-key, got %s", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Dimensions != 1024 {
		t.Errorf("Expected Embedding.Dimensions=1024, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.MaxConcurrency != 2 {
		t.Errorf("Expected Embedding.MaxConcurrency=2, got %d", cfg.Embedding.MaxConcurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

// TestNewConfigFromProfile_OpenAI tests the OpenAI-compatible vision provider.
func TestNewConfigFromProfile_OpenAI(t *testing.T) {
	prof := &profile.Profile{
		AIVisionProvider:      "openai",
		AIVisionModel:         "gpt-4o",
		AIAnthropicAPIKey:     "ant-key",
		AIOpenAIAPIKey:        "openai-key",
		AIOpenAIBaseURL:       "https://api.openai.com/v1",
		AIEmbeddingModel:      "text-embedding-3-large",
		AIEmbeddingDimensions: 1024,
	}

	cfg := NewConfigFromProfile(prof)

	if cfg.Vision.APIKey != "openai-key" {
		t.Errorf("Expected Vision.APIKey=openai-key, got %s", cfg.Vision.APIKey)
	}
	if cfg.Vision.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("Expected Vision.BaseURL=https://api.openai.com/v1, got %s", cfg.Vision.BaseURL)
	}
}

// TestConfigValidate tests configuration validation.
func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Vision:    VisionConfig{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
			Embedding: EmbeddingConfig{Model: "bge", Dimensions: 1024},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing credential is allowed", func(c *Config) { c.Vision.APIKey = "" }, false},
		{"missing provider", func(c *Config) { c.Vision.Provider = "" }, true},
		{"unsupported provider", func(c *Config) { c.Vision.Provider = "gemini" }, true},
		{"missing vision model", func(c *Config) { c.Vision.Model = "" }, true},
		{"missing embedding model", func(c *Config) { c.Embedding.Model = "" }, true},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("Validate() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}
