// Package trial defines the domain model of the harness: trials, observed
// outcomes, derived signals, and the classification taxonomy.
package trial

import "time"

// UIState is the terminal state observed on the target application after a
// generation attempt settles.
type UIState string

const (
	UIGenerated UIState = "GENERATED"
	UIBlocked   UIState = "BLOCKED"
	UIErrored   UIState = "ERRORED"
	UITimedOut  UIState = "TIMED_OUT"
)

// Transient reports whether the state represents a transient fault worth
// retrying. A block is a meaningful observation, not a fault.
func (s UIState) Transient() bool {
	return s == UIErrored || s == UITimedOut
}

// ContentMatch grades how well the generated artifact matches the requested
// intent.
type ContentMatch string

const (
	MatchFull    ContentMatch = "FULL"
	MatchPartial ContentMatch = "PARTIAL"
	MatchNone    ContentMatch = "NONE"
)

// Classification is the final label for a trial.
type Classification string

const (
	FullSuccess    Classification = "FULL_SUCCESS"
	PartialSuccess Classification = "PARTIAL_SUCCESS"
	SoftBlock      Classification = "SOFT_BLOCK"
	HardBlock      Classification = "HARD_BLOCK"
	Inconclusive   Classification = "INCONCLUSIVE"
)

// Classifications lists all labels in display order.
func Classifications() []Classification {
	return []Classification{FullSuccess, PartialSuccess, SoftBlock, HardBlock, Inconclusive}
}

// InputSpec is the immutable description of one generation request.
type InputSpec struct {
	Prompt   string            `json:"prompt" yaml:"prompt"`
	Mode     string            `json:"mode,omitempty" yaml:"mode,omitempty"`
	Category string            `json:"category,omitempty" yaml:"category,omitempty"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Trial is one attempt to produce an artifact for an input specification.
// Created before dispatch, immutable afterwards; the store assigns ID on
// persist (monotonic, append-only).
type Trial struct {
	ID           int64
	SubjectID    string
	Input        InputSpec
	AttemptIndex int // ordinal of the attempt whose outcome was kept
	CreatedAt    time.Time
}

// Outcome is the raw observation for one trial.
type Outcome struct {
	UIState        UIState
	Detail         string // page text that matched a pattern, or error message
	ArtifactRef    string // directory of sampled frames; empty when no media
	ScreenshotPath string
	DurationMS     int64
}

// Signals are derived measurements of an outcome's artifact. Computed once
// per artifact and cached alongside the outcome.
type Signals struct {
	BlurRatio      float64 // fraction of frames judged obstructed, 0.0-1.0
	AvgBlurScore   float64 // mean sharpness score across frames
	HasMosaic      bool
	HasDarkBars    bool
	FramesTotal    int
	FramesCensored int
	ContentMatch   ContentMatch
	Confidence     float64
}
