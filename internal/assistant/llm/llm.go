// Package llm abstracts the language model behind one method so the
// assistant can run against OpenAI-compatible endpoints or a test double.
package llm

import "context"

//go:generate mockgen -source=llm.go -destination=mocks/mock_llm.go -package=mocks

// LLM produces a completion for a prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
