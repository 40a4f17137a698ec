package embed

import (
	"fmt"
	"strings"
)

// NewProvider creates an embedding provider based on configuration.
// "none" or an empty name returns nil: embedding is disabled.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		p, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "ollama":
		p, err := NewOllamaProvider(config)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "hash":
		return NewHashProvider(config.Dimensions), nil

	case "", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama, hash, none)", config.Provider)
	}
}
