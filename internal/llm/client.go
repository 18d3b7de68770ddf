// Package llm provides the generation-service boundary: the Generator interface,
// an Ollama transport, and the result type used to parse untrusted replies.
package llm

import "context"

// Request is one generation call: a persona system prompt plus a user payload.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	// JSON asks the service to constrain output to JSON when it supports that.
	JSON bool
}

// Generator returns the raw reply text for a request. Implementations make no
// promise that the reply is well-formed.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
