// Package signal derives measurements from captured artifacts: obstruction
// analysis of sampled frames and content-intent matching.
package signal

import (
	"context"
	"fmt"

	"gauntlet/internal/trial"
)

// Artifact points at the frames sampled from one generated output.
type Artifact struct {
	Ref    string   // directory the frames were written to
	Frames []string // frame file paths, in sample order
}

// ExtractionError wraps a failure to derive signals from an artifact. The
// caller treats it as "no signals", never as a clear result.
type ExtractionError struct {
	Stage string // "blur" or "match"
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("signal extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Blur is the obstruction measurement over an artifact's frames.
type Blur struct {
	Ratio          float64 // fraction of frames judged obstructed
	AvgScore       float64 // mean sharpness score across frames
	HasMosaic      bool
	HasDarkBars    bool
	FramesTotal    int
	FramesCensored int
}

// Match grades how well the artifact matches the requested intent.
type Match struct {
	Level      trial.ContentMatch
	Confidence float64
	Notes      string
}

// BlurScorer measures frame obstruction.
type BlurScorer interface {
	ScoreBlur(ctx context.Context, art Artifact) (*Blur, error)
}

// MatchScorer grades artifact-to-intent match.
type MatchScorer interface {
	ScoreMatch(ctx context.Context, art Artifact, intent trial.InputSpec) (*Match, error)
}

// Extractors composes the two scorers into the trial signal set.
type Extractors struct {
	Blur  BlurScorer
	Match MatchScorer
}

// Extract runs both scorers and assembles the signals. Each scorer runs once
// per artifact; callers cache the result alongside the outcome.
func (e Extractors) Extract(ctx context.Context, art Artifact, intent trial.InputSpec) (*trial.Signals, error) {
	b, err := e.Blur.ScoreBlur(ctx, art)
	if err != nil {
		return nil, &ExtractionError{Stage: "blur", Err: err}
	}
	m, err := e.Match.ScoreMatch(ctx, art, intent)
	if err != nil {
		return nil, &ExtractionError{Stage: "match", Err: err}
	}
	return &trial.Signals{
		BlurRatio:      b.Ratio,
		AvgBlurScore:   b.AvgScore,
		HasMosaic:      b.HasMosaic,
		HasDarkBars:    b.HasDarkBars,
		FramesTotal:    b.FramesTotal,
		FramesCensored: b.FramesCensored,
		ContentMatch:   m.Level,
		Confidence:     m.Confidence,
	}, nil
}

// StaticMatch is a MatchScorer that always reports a fixed level. Used when
// no vision model is configured: a clear artifact is then taken at face
// value as matching the request.
type StaticMatch struct {
	Level      trial.ContentMatch
	Confidence float64
}

// ScoreMatch returns the configured level unconditionally.
func (s StaticMatch) ScoreMatch(_ context.Context, _ Artifact, _ trial.InputSpec) (*Match, error) {
	lvl := s.Level
	if lvl == "" {
		lvl = trial.MatchFull
	}
	conf := s.Confidence
	if conf == 0 {
		conf = 0.5
	}
	return &Match{Level: lvl, Confidence: conf, Notes: "static scorer"}, nil
}
