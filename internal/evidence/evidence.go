// Package evidence maintains a per-subject running belief about the target's
// moderation regime, modeled as a sequential hypothesis test over the stream
// of trial classifications.
package evidence

import (
	"fmt"
	"sync"
	"time"

	"gauntlet/internal/trial"
)

// State is the decision state of one subject's evidence.
type State string

const (
	Open     State = "OPEN"
	Accepted State = "ACCEPTED" // permissive-regime hypothesis accepted
	Rejected State = "REJECTED" // permissive-regime hypothesis rejected
)

// Decision is the per-update verdict returned to the orchestrator.
type Decision string

const (
	Continue Decision = "CONTINUE"
	Accept   Decision = "ACCEPT"
	Reject   Decision = "REJECT"
)

// InvariantViolation is a fatal configuration error: the process must refuse
// to run rather than start with thresholds that break the model's guarantees.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return "evidence configuration invariant violation: " + e.Msg
}

// Config holds the tunable parameters of the evidence model. The defaults
// are illustrative starting points, not derived constants.
type Config struct {
	// Weights maps each classification to its signed log-odds increment.
	Weights map[trial.Classification]float64 `yaml:"weights" json:"weights"`
	// AcceptThreshold: log_odds at or above it means ACCEPTED.
	AcceptThreshold float64 `yaml:"accept_threshold" json:"accept_threshold"`
	// RejectThreshold: log_odds at or below it means REJECTED.
	RejectThreshold float64 `yaml:"reject_threshold" json:"reject_threshold"`
	// MinLogOdds and MaxLogOdds clamp the accumulated score.
	MinLogOdds float64 `yaml:"min_log_odds" json:"min_log_odds"`
	MaxLogOdds float64 `yaml:"max_log_odds" json:"max_log_odds"`
	// SurpriseMargin is the extra log-odds beyond a decision boundary at
	// which the belief counts as confident. A contradicting observation
	// against a confident belief triggers invalidation instead of a
	// normal update.
	SurpriseMargin float64 `yaml:"surprise_margin" json:"surprise_margin"`
}

// DefaultConfig returns the stock evidence model parameters.
func DefaultConfig() Config {
	return Config{
		Weights: map[trial.Classification]float64{
			trial.FullSuccess:    1.0,
			trial.PartialSuccess: 0.3,
			trial.SoftBlock:      -0.5,
			trial.HardBlock:      -1.0,
			trial.Inconclusive:   0,
		},
		AcceptThreshold: 1.5,
		RejectThreshold: -1.5,
		MinLogOdds:      -6.0,
		MaxLogOdds:      6.0,
		SurpriseMargin:  1.0,
	}
}

// Validate checks the configuration invariants. In particular no single
// trial may cross a decision boundary from a fresh subject: thresholds must
// lie outside the single-step increment range.
func (c Config) Validate() error {
	if len(c.Weights) == 0 {
		return &InvariantViolation{Msg: "weights map is empty"}
	}
	var maxPos, minNeg float64
	for cls, w := range c.Weights {
		if cls == trial.Inconclusive && w != 0 {
			return &InvariantViolation{Msg: fmt.Sprintf(
				"INCONCLUSIVE weight must be 0 (cancellations are never evidence), got %v", w)}
		}
		if w > maxPos {
			maxPos = w
		}
		if w < minNeg {
			minNeg = w
		}
	}
	if c.AcceptThreshold <= 0 || c.RejectThreshold >= 0 {
		return &InvariantViolation{Msg: fmt.Sprintf(
			"thresholds must straddle zero: accept=%v reject=%v", c.AcceptThreshold, c.RejectThreshold)}
	}
	if c.AcceptThreshold <= maxPos {
		return &InvariantViolation{Msg: fmt.Sprintf(
			"accept_threshold %v is within single-step range (max increment %v); a single trial could decide a fresh subject",
			c.AcceptThreshold, maxPos)}
	}
	if c.RejectThreshold >= minNeg {
		return &InvariantViolation{Msg: fmt.Sprintf(
			"reject_threshold %v is within single-step range (min increment %v); a single trial could decide a fresh subject",
			c.RejectThreshold, minNeg)}
	}
	if c.MinLogOdds > c.RejectThreshold || c.MaxLogOdds < c.AcceptThreshold {
		return &InvariantViolation{Msg: fmt.Sprintf(
			"clamp range [%v, %v] must contain both thresholds", c.MinLogOdds, c.MaxLogOdds)}
	}
	if c.SurpriseMargin < 0 {
		return &InvariantViolation{Msg: fmt.Sprintf("surprise_margin must be >= 0, got %v", c.SurpriseMargin)}
	}
	return nil
}

// Snapshot is a consistent copy of one subject's evidence state.
type Snapshot struct {
	SubjectID   string    `json:"subject_id"`
	LogOdds     float64   `json:"log_odds"`
	TrialCount  int       `json:"trial_count"`
	State       State     `json:"state"`
	LastUpdated time.Time `json:"last_updated"`
}

// Update is the result of applying one classification to a subject.
type Update struct {
	Snapshot
	Delta       float64  `json:"delta"`
	Decision    Decision `json:"decision"`
	Invalidated bool     `json:"invalidated"`
}

// subject is the per-subject mutable state. Its mutex serializes the
// read-modify-write of log_odds; readers always see pre- or post-update
// state, never a partial one.
type subject struct {
	mu          sync.Mutex
	logOdds     float64
	trialCount  int
	state       State
	lastUpdated time.Time
}

// Accumulator owns all evidence state, keyed by subject. It is the only
// component allowed to mutate it; everything else reads snapshots.
type Accumulator struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	subjects map[string]*subject
}

// New validates cfg and returns an accumulator. A configuration that breaks
// the model invariants is rejected here, at startup, not at first update.
func New(cfg Config) (*Accumulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Accumulator{
		cfg:      cfg,
		now:      time.Now,
		subjects: make(map[string]*subject),
	}, nil
}

// SetClock overrides the time source (tests).
func (a *Accumulator) SetClock(now func() time.Time) { a.now = now }

func (a *Accumulator) subjectFor(id string) *subject {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.subjects[id]
	if !ok {
		s = &subject{state: Open}
		a.subjects[id] = s
	}
	return s
}

// Apply folds one classification into the subject's evidence and returns the
// resulting update. Within one subject, callers must apply trials in
// dispatch order.
//
// A contradicting observation against a confident terminal belief (log_odds
// at least SurpriseMargin beyond the crossed boundary) is treated as a
// regime discontinuity: the state resets to OPEN with log_odds 0 and the
// triggering increment is consumed by the reset, not applied.
func (a *Accumulator) Apply(subjectID string, c trial.Classification) Update {
	s := a.subjectFor(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := a.cfg.Weights[c]
	now := a.now()

	if a.surprising(s, delta) {
		s.logOdds = 0
		s.trialCount = 0
		s.state = Open
		s.lastUpdated = now
		return Update{
			Snapshot:    s.snapshot(subjectID),
			Delta:       delta,
			Decision:    Continue,
			Invalidated: true,
		}
	}

	s.logOdds = clamp(s.logOdds+delta, a.cfg.MinLogOdds, a.cfg.MaxLogOdds)
	s.trialCount++
	s.lastUpdated = now
	switch {
	case s.logOdds >= a.cfg.AcceptThreshold:
		s.state = Accepted
	case s.logOdds <= a.cfg.RejectThreshold:
		s.state = Rejected
	default:
		s.state = Open
	}

	return Update{
		Snapshot: s.snapshot(subjectID),
		Delta:    delta,
		Decision: decisionFor(s.state),
	}
}

// surprising reports whether delta contradicts a confident terminal belief.
// Called with s.mu held.
func (a *Accumulator) surprising(s *subject, delta float64) bool {
	switch s.state {
	case Accepted:
		return delta < 0 && s.logOdds >= a.cfg.AcceptThreshold+a.cfg.SurpriseMargin
	case Rejected:
		return delta > 0 && s.logOdds <= a.cfg.RejectThreshold-a.cfg.SurpriseMargin
	}
	return false
}

// Snapshot returns a consistent copy of the subject's state. A subject never
// seen before reads as fresh (OPEN, zero odds).
func (a *Accumulator) Snapshot(subjectID string) Snapshot {
	s := a.subjectFor(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(subjectID)
}

// Subjects returns the IDs of all subjects with recorded evidence.
func (a *Accumulator) Subjects() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.subjects))
	for id := range a.subjects {
		ids = append(ids, id)
	}
	return ids
}

func (s *subject) snapshot(id string) Snapshot {
	return Snapshot{
		SubjectID:   id,
		LogOdds:     s.logOdds,
		TrialCount:  s.trialCount,
		State:       s.state,
		LastUpdated: s.lastUpdated,
	}
}

func decisionFor(st State) Decision {
	switch st {
	case Accepted:
		return Accept
	case Rejected:
		return Reject
	default:
		return Continue
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
