package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient provides access to the Anthropic Messages API behind the
// same ChatClient interface as the OpenAI-compatible client.
type AnthropicClient struct {
	client   *anthropic.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// NewAnthropicClient creates a new Anthropic chat client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Endpoint))
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm-anthropic"),
	}, nil
}

// Complete generates a chat completion for the request.
// Anthropic models the system prompt separately from the message list and
// requires an explicit max token budget.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	messages := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantTextMessage(m.Content))
		default:
			messages = append(messages, anthropic.NewUserTextMessage(m.Content))
		}
	}

	apiReq := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    req.System,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		apiReq.Temperature = &temp
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)),
		zap.Int("max_tokens", maxTokens))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, apiReq)
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	content := resp.GetFirstContentText()

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.String("stop_reason", string(resp.StopReason)),
		zap.Duration("elapsed", time.Since(start)))

	return &CompletionResult{
		Content:          content,
		FinishReason:     mapAnthropicStopReason(resp.StopReason),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *AnthropicClient) GetEndpoint() string {
	return c.endpoint
}

func mapAnthropicStopReason(sr anthropic.MessagesStopReason) FinishReason {
	switch sr {
	case anthropic.MessagesStopReasonEndTurn, anthropic.MessagesStopReasonStopSequence:
		return FinishReasonStop
	case anthropic.MessagesStopReasonMaxTokens:
		return FinishReasonLength
	default:
		return FinishReasonOther
	}
}

// Ensure AnthropicClient implements ChatClient at compile time.
var _ ChatClient = (*AnthropicClient)(nil)
