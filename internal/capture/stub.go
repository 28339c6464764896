package capture

import (
	"context"
	"fmt"
	"sync"

	"gauntlet/internal/trial"
)

// Step is one scripted response of the Stub.
type Step struct {
	Outcome *trial.Outcome
	Err     error
}

// Stub is a scripted Capture for tests and dry runs: each Submit consumes
// the next step of its script. Per-category scripts take precedence over
// the global one.
type Stub struct {
	mu      sync.Mutex
	scripts map[string][]Step
	byOrder []Step

	// Calls records the submissions in arrival order.
	Calls []StubCall
}

// StubCall is one recorded Submit.
type StubCall struct {
	Input    trial.InputSpec
	TrialRef string
}

// NewStub returns a stub with a global script consumed in order.
func NewStub(steps ...Step) *Stub {
	return &Stub{scripts: make(map[string][]Step), byOrder: steps}
}

// Script sets a dedicated script for inputs with the given category.
func (s *Stub) Script(category string, steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[category] = steps
}

// Submit consumes the next scripted step.
func (s *Stub) Submit(ctx context.Context, input trial.InputSpec, trialRef string) (*trial.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, StubCall{Input: input, TrialRef: trialRef})

	if script, ok := s.scripts[input.Category]; ok && len(script) > 0 {
		step := script[0]
		s.scripts[input.Category] = script[1:]
		return step.Outcome, step.Err
	}
	if len(s.byOrder) == 0 {
		return nil, fmt.Errorf("stub script exhausted at trial %s", trialRef)
	}
	step := s.byOrder[0]
	s.byOrder = s.byOrder[1:]
	return step.Outcome, step.Err
}
