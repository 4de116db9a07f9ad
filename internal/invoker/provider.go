// Package invoker wraps the external reasoning capability behind
// single-purpose stage adapters. Each adapter sends instructions plus an
// input payload to a text-completion provider and enforces structural
// conformance of the result; semantic quality is not its concern.
package invoker

import (
	"context"
	"fmt"

	"github.com/dkoutsos/agentsim/internal/config"
)

// Provider produces raw text output from instructions and an input payload.
// Implementations must honor ctx cancellation and deadlines.
type Provider interface {
	Complete(ctx context.Context, instructions, input string) (string, error)
}

// NewProvider builds the configured provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// InvocationError means a stage could not produce a conforming output,
// either because the provider call failed or because its result did not
// match the stage's declared shape.
type InvocationError struct {
	Stage string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
