package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/prepstack-ai/prepstack-engine/pkg/config"
)

// Factory creates chat clients from the server AI configuration.
// Clients are constructed per call site rather than held in package state so
// tests can substitute a mock factory.
type Factory struct {
	cfg    *config.AIConfig
	logger *zap.Logger
}

// NewFactory creates a new factory.
func NewFactory(cfg *config.AIConfig, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateChatClient creates the primary coaching client.
func (f *Factory) CreateChatClient() (ChatClient, error) {
	return f.create(f.cfg.Model)
}

// CreateFallbackClient creates the cheaper client used for the single
// bounded retry after a truncated or empty completion.
func (f *Factory) CreateFallbackClient() (ChatClient, error) {
	return f.create(f.cfg.FallbackModel)
}

// defaultOpenAIEndpoint is applied when no base URL is configured for the
// openai provider. The anthropic client falls back to its own library
// default, so an empty base URL is passed through untouched there.
const defaultOpenAIEndpoint = "https://api.openai.com/v1"

func (f *Factory) create(model string) (ChatClient, error) {
	clientCfg := &Config{
		Endpoint: f.cfg.BaseURL,
		Model:    model,
		APIKey:   f.cfg.APIKey,
	}

	switch f.cfg.Provider {
	case config.ProviderAnthropic:
		client, err := NewAnthropicClient(clientCfg, f.logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	case config.ProviderOpenAI:
		if clientCfg.Endpoint == "" {
			clientCfg.Endpoint = defaultOpenAIEndpoint
		}
		client, err := NewClient(clientCfg, f.logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", f.cfg.Provider)
	}
}

// Ensure Factory implements ClientFactory at compile time.
var _ ClientFactory = (*Factory)(nil)
