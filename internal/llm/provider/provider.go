// Package provider abstracts the language-model backends the oracles run on.
// Every oracle call goes through the Provider interface so any backing model
// (or a stub in tests) can be substituted without touching dialogue logic.
package provider

import (
	"context"
)

// Provider is a single language-model backend instance.
type Provider interface {
	// CreateCompletion generates a free-text response.
	CreateCompletion(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g. "gemini", "openai").
	Name() string
}

// Message is one chat turn handed to the model.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest carries a single model invocation.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`

	// JSONOnly asks the backend for a JSON-typed response where supported.
	JSONOnly bool `json:"json_only,omitempty"`
}

// CompletionResponse is the model's answer.
type CompletionResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage reports token consumption for accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
