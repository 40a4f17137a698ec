package embed

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/consolidator/internal/model"
)

// Provider turns text into a fixed-dimension vector
type Provider interface {
	// Name returns the provider name
	Name() string

	// Model returns the embedding model in use
	Model() string

	// Dimensions returns the vector size, 0 when unknown until the first call
	Dimensions() int

	// Embed returns the vector for text
	Embed(ctx context.Context, text string) ([]float32, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Config holds embedding provider configuration
type Config struct {
	// Provider name: "openai", "ollama", "hash", "none"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Dimensions requested from the model
	Dimensions int

	// Timeout for API requests
	Timeout time.Duration

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// ConfigFromModel converts model.EmbeddingConfig to embed.Config
func ConfigFromModel(c model.EmbeddingConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Dimensions: c.Dimensions,
		Timeout:    c.Timeout,
		HTTPProxy:  c.HTTPProxy,
		HTTPSProxy: c.HTTPSProxy,
	}
}

// Truncate cuts text to at most maxChars runes. maxChars <= 0 disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars])
}
