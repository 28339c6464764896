package store

import (
	"errors"
	"sort"
	"sync"

	"gauntlet/internal/trial"
)

// MemStore implements Store in memory. Used in tests and for dry runs.
type MemStore struct {
	mu     sync.Mutex
	nextID int64
	trials map[int64]*Record
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1, trials: make(map[int64]*Record)}
}

// Put appends one record and returns the assigned trial ID.
func (s *MemStore) Put(rec *Record) (int64, error) {
	if rec == nil {
		return 0, errors.New("record is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	cp := *rec
	cp.TrialID = id
	if rec.Signals != nil {
		sig := *rec.Signals
		cp.Signals = &sig
	}
	s.trials[id] = &cp
	rec.TrialID = id
	return id, nil
}

// Get returns the record by trial ID, or nil if absent.
func (s *MemStore) Get(trialID int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trials[trialID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	if rec.Signals != nil {
		sig := *rec.Signals
		cp.Signals = &sig
	}
	return &cp, nil
}

// List returns records matching q, ordered by trial ID.
func (s *MemStore) List(q Query) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.trials))
	for id := range s.trials {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var list []*Record
	for _, id := range ids {
		rec := s.trials[id]
		if q.SubjectID != "" && rec.SubjectID != q.SubjectID {
			continue
		}
		if q.Classification != "" && rec.Classification != q.Classification {
			continue
		}
		if !q.Since.IsZero() && rec.Timestamp.Before(q.Since) {
			continue
		}
		cp := *rec
		if rec.Signals != nil {
			sig := *rec.Signals
			cp.Signals = &sig
		}
		list = append(list, &cp)
		if q.Limit > 0 && len(list) == q.Limit {
			break
		}
	}
	return list, nil
}

// Stats aggregates the whole log.
func (s *MemStore) Stats() (*Stats, error) {
	recs, err := s.List(Query{})
	if err != nil {
		return nil, err
	}
	st := &Stats{
		ByClassification: make(map[trial.Classification]int),
		ByUIState:        make(map[trial.UIState]int),
		ByCategory:       make(map[string]int),
	}
	last := make(map[string]*Record)
	counts := make(map[string]int)
	var blurSum float64
	var blurN int
	for _, rec := range recs {
		st.Total++
		st.ByClassification[rec.Classification]++
		st.ByUIState[rec.UIState]++
		st.ByCategory[rec.Category]++
		counts[rec.SubjectID]++
		last[rec.SubjectID] = rec
		if rec.Signals != nil {
			blurSum += rec.Signals.BlurRatio
			blurN++
		}
	}
	if blurN > 0 {
		st.AvgBlurRatio = blurSum / float64(blurN)
	}
	subjects := make([]string, 0, len(last))
	for id := range last {
		subjects = append(subjects, id)
	}
	sort.Strings(subjects)
	for _, id := range subjects {
		rec := last[id]
		st.Subjects = append(st.Subjects, SubjectStats{
			SubjectID:     id,
			Trials:        counts[id],
			LastLogOdds:   rec.LogOddsAfter,
			LastState:     rec.EvidenceState,
			LastTimestamp: rec.Timestamp,
		})
	}
	return st, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }
