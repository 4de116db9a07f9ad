package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// invoke runs one provider call and unmarshals the reply into T. Models
// often wrap JSON in markdown fences; those are stripped before decoding.
func invoke[T any](ctx context.Context, p Provider, stage, instructions, input string) (T, error) {
	var out T

	raw, err := p.Complete(ctx, instructions, input)
	if err != nil {
		return out, &InvocationError{Stage: stage, Err: err}
	}

	cleaned := stripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, &InvocationError{Stage: stage, Err: fmt.Errorf("unmarshal output: %w", err)}
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
