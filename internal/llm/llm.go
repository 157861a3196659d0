package llm

import (
	"context"

	"papernotes/internal/rag/prompts"
)

// Request describes one completion call: a prompt template plus its
// variables, and the sampling parameters. Rendering the template fails with
// prompts.ErrMissingVariable when a declared variable is absent, so a broken
// call site is caught before any network traffic.
type Request struct {
	Template    prompts.Template
	Vars        map[string]string
	Model       string
	Temperature float32
	MaxTokens   int // 0 means provider default
}

// Client is the text-generation collaborator: prompt in, text out.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// CompleteStream yields text deltas on the returned channel. The channel
	// is closed when the stream ends or the context is cancelled; a consumer
	// that stops draining simply never observes the tail.
	CompleteStream(ctx context.Context, req Request) (<-chan string, error)
}
