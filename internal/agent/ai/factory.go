package ai

import (
	"errors"
	"fmt"

	"github.com/neboloop/hearth/internal/config"
)

// ErrNotConfigured is returned when the selected provider lacks credentials
// or a model.
var ErrNotConfigured = errors.New("provider not configured")

// NewFromConfig builds the provider selected by cfg.Kind.
func NewFromConfig(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case config.ProviderAzure:
		if cfg.Endpoint == "" || cfg.APIKey == "" || cfg.Deployment == "" {
			return nil, fmt.Errorf("azure: endpoint, api key and deployment are required: %w", ErrNotConfigured)
		}
		return NewAzureProvider(cfg.Endpoint, cfg.APIVersion, cfg.APIKey, cfg.Deployment), nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is required: %w", ErrNotConfigured)
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Endpoint, cfg.Model), nil
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic: api key is required: %w", ErrNotConfigured)
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.Model), nil
	case config.ProviderOllama:
		return NewOllamaProvider(cfg.Endpoint, cfg.Model), nil
	}
	return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
}
