// Package llm provides provider-agnostic chat completion clients for the
// coaching LLM, selected by configuration (OpenAI-compatible or Anthropic).
package llm

import (
	"context"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation sent to the provider.
type Message struct {
	Role    Role
	Content string
}

// FinishReason reports how the provider ended the completion.
type FinishReason string

const (
	// FinishReasonStop is a natural end of turn.
	FinishReasonStop FinishReason = "stop"
	// FinishReasonLength means the completion hit the token budget and is
	// likely truncated; callers retry once on a cheaper model in that case.
	FinishReasonLength FinishReason = "length"
	// FinishReasonOther covers provider-specific reasons (content filters etc).
	FinishReasonOther FinishReason = "other"
)

// CompletionRequest describes one chat completion call.
type CompletionRequest struct {
	// System is the system prompt; providers that model it separately
	// (Anthropic) receive it out of band.
	System string
	// Messages is the conversation window, oldest first.
	Messages []Message
	// Temperature in [0,2]; zero value means provider default.
	Temperature float64
	// MaxTokens caps the completion; zero value means provider default.
	MaxTokens int
	// JSONOnly asks the provider for a JSON-object response where supported.
	JSONOnly bool
}

// CompletionResult is the provider's reply plus usage accounting.
type CompletionResult struct {
	Content          string
	FinishReason     FinishReason
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Truncated reports whether the completion was cut off by the token budget.
func (r *CompletionResult) Truncated() bool {
	return r != nil && r.FinishReason == FinishReasonLength
}

// Empty reports whether the completion carried no usable text.
func (r *CompletionResult) Empty() bool {
	return r == nil || r.Content == ""
}

// ChatClient is the interface for chat completion operations.
// Use this interface for dependency injection to enable mocking in tests.
type ChatClient interface {
	// Complete generates a chat completion for the request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// ClientFactory creates chat clients for the coaching flow. The primary
// client runs normal coaching calls; the fallback client is a cheaper model
// used for the single bounded retry after truncation or empty output.
type ClientFactory interface {
	CreateChatClient() (ChatClient, error)
	CreateFallbackClient() (ChatClient, error)
}
