// Package store persists trial records. The log is append-only: records are
// inserted once and never updated or deleted.
package store

import (
	"time"

	"gauntlet/internal/evidence"
	"gauntlet/internal/trial"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Resolve against cwd; Open() creates the parent dir (e.g. .gauntlet).
const DefaultDBPath = ".gauntlet/gauntlet.db"

// Record is one persisted trial: the input, the observation, the derived
// signals if extraction succeeded, and the evidence position after the
// update was folded in.
type Record struct {
	TrialID        int64
	SubjectID      string
	Timestamp      time.Time
	Prompt         string
	Category       string
	AttemptIndex   int
	UIState        trial.UIState
	Detail         string
	Signals        *trial.Signals // nil when extraction failed or nothing was produced
	Classification trial.Classification
	LogOddsAfter   float64
	EvidenceState  evidence.State
	DurationMS     int64
	ArtifactRef    string
	ScreenshotPath string
}

// Query filters List. Zero values mean "no filter".
type Query struct {
	SubjectID      string
	Classification trial.Classification
	Since          time.Time
	Limit          int
}

// SubjectStats is the per-subject rollup inside Stats.
type SubjectStats struct {
	SubjectID     string
	Trials        int
	LastLogOdds   float64
	LastState     evidence.State
	LastTimestamp time.Time
}

// Stats is the aggregate view over the whole log.
type Stats struct {
	Total            int
	ByClassification map[trial.Classification]int
	ByUIState        map[trial.UIState]int
	ByCategory       map[string]int // uncategorized trials under ""
	AvgBlurRatio     float64        // mean over trials that have signals; 0 when none do
	Subjects         []SubjectStats
}

// Store is the persistence facade. Domain and CLI use only this interface;
// implementation is SQLite or in-memory.
type Store interface {
	// Put appends one record and returns the assigned trial ID.
	// IDs are monotonically increasing within a store.
	Put(rec *Record) (int64, error)
	// Get returns the record by trial ID, or nil if absent.
	Get(trialID int64) (*Record, error)
	// List returns records matching q, ordered by trial ID.
	List(q Query) ([]*Record, error)
	// Stats aggregates the whole log.
	Stats() (*Stats, error)
	Close() error
}
