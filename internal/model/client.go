// Package model is the boundary to the hosted language model. It exposes a
// single round-trip operation and classifies failures into a small set of
// error kinds.
package model

import (
	"context"

	"github.com/revcraft/revcraft/internal/session"
)

// Options tunes one round-trip.
type Options struct {
	WebSearch   bool
	MaxTokens   int
	Temperature float64
	// MaxSearches caps server-side web searches when WebSearch is set.
	MaxSearches int
}

// Usage is the token usage reported for one round-trip.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the text reply and its usage.
type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

// Client sends the full message history plus a system prompt and returns
// the reply. Errors unwrap to ErrAuthInvalid, ErrRateLimited, ErrBadRequest
// or ErrTransport.
type Client interface {
	Invoke(ctx context.Context, messages []session.Message, systemPrompt string, opts Options) (*Response, error)
}
