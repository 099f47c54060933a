// Package llm provides an abstraction over the AI text generation provider.
package llm

import "context"

// Generator produces text from a system and user prompt. The result is opaque
// to callers and inserted verbatim where it is used.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Ensure both implementations satisfy Generator.
var (
	_ Generator = (*Client)(nil)
	_ Generator = (*MockClient)(nil)
)
