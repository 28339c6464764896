package orchestrate

import "fmt"

// Kind labels the orchestrator failure modes.
type Kind string

const (
	// KindRateLimited: the context expired while waiting for a dispatch slot.
	KindRateLimited Kind = "RATE_LIMITED"
	// KindCanceled: the context was canceled mid-trial.
	KindCanceled Kind = "CANCELED"
	// KindExhaustedRetries: every attempt came back transient.
	KindExhaustedRetries Kind = "EXHAUSTED_RETRIES"
	// KindStore: the record could not be persisted.
	KindStore Kind = "STORE"
	// KindInvalidation: evidence was invalidated while the orchestrator was
	// told to require a stable regime. Surfaced as an error only then;
	// otherwise invalidation is an ordinary part of the result.
	KindInvalidation Kind = "INVALIDATION"
)

// Error is an orchestrator failure with its kind and subject.
type Error struct {
	Kind      Kind
	SubjectID string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("orchestrate %s: subject %s", e.Kind, e.SubjectID)
	}
	return fmt.Sprintf("orchestrate %s: subject %s: %v", e.Kind, e.SubjectID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
