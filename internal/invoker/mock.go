package invoker

import (
	"context"
	"errors"
	"sync"
)

// ScriptedProvider returns a pre-defined sequence of responses. Useful for
// driving the pipeline in tests without a real reasoning backend.
type ScriptedProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// CallCount tracks how many times Complete has been called.
	CallCount int
}

func NewScriptedProvider(responses ...string) *ScriptedProvider {
	return &ScriptedProvider{Responses: responses}
}

// Complete pops the next scripted response or returns the configured error.
func (s *ScriptedProvider) Complete(ctx context.Context, instructions, input string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", errors.New("scripted provider: no more responses available")
	}

	content := s.Responses[0]
	s.Responses = s.Responses[1:]
	return content, nil
}

// AddResponse appends a response to the queue.
func (s *ScriptedProvider) AddResponse(response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, response)
}
