package orchestrate

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"gauntlet/internal/trial"
)

// Case is one planned trial of a suite.
type Case struct {
	SubjectID string
	Input     trial.InputSpec
}

// CaseResult pairs a suite case with what running it produced.
type CaseResult struct {
	Case   Case
	Result *Result
	Err    error
}

// RunSuite runs all cases. Cases sharing a subject run serially in plan
// order; distinct subjects run in parallel, at most workers at a time. A
// failed trial does not stop its lane unless the failure is an invalidation
// under RequireStableRegime, which cancels the whole suite.
func (o *Orchestrator) RunSuite(ctx context.Context, cases []Case, workers int) ([]CaseResult, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]CaseResult, len(cases))

	// Group case indexes by subject, preserving plan order within a lane.
	laneOrder := make([]string, 0)
	lanes := make(map[string][]int)
	for i, c := range cases {
		if _, ok := lanes[c.SubjectID]; !ok {
			laneOrder = append(laneOrder, c.SubjectID)
		}
		lanes[c.SubjectID] = append(lanes[c.SubjectID], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, subject := range laneOrder {
		idxs := lanes[subject]
		g.Go(func() error {
			for _, i := range idxs {
				res, err := o.RunTrial(gctx, cases[i].SubjectID, cases[i].Input)
				results[i] = CaseResult{Case: cases[i], Result: res, Err: err}
				if err == nil {
					continue
				}
				var oerr *Error
				if errors.As(err, &oerr) && oerr.Kind == KindInvalidation {
					return err
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
