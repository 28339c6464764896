// Package capture drives the target application: it submits one generation
// request and watches the UI until the attempt settles.
package capture

import (
	"context"
	"fmt"

	"gauntlet/internal/trial"
)

// Capture submits one input and reports the settled outcome.
//
// A timeout while polling is an observation, not a failure: implementations
// return Outcome{UIState: TIMED_OUT} with a nil error. Errors are reserved
// for infrastructure faults where nothing was observed.
type Capture interface {
	Submit(ctx context.Context, input trial.InputSpec, trialRef string) (*trial.Outcome, error)
}

// CaptureError is an infrastructure fault in the capture layer: the browser
// died, navigation failed, the target was unreachable.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
