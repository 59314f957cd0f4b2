// Package synth is the result synthesis boundary: it folds a
// finished plan's tool results into a single answer, through an LLM
// provider when one is reachable and a templated summary otherwise.
package synth

import (
	"context"
	"time"
)

// Provider is an LLM backend capable of chat completion.
type Provider interface {
	// Chat sends a request and returns the completion.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier.
	Name() string

	// Available reports whether the provider is configured and
	// reachable.
	Available() bool
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	Temperature  float64   `json:"temperature,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the completion result.
type ChatResponse struct {
	Content    string        `json:"content"`
	Model      string        `json:"model"`
	TokensUsed int           `json:"tokens_used,omitempty"`
	Duration   time.Duration `json:"duration"`
}
