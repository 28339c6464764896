// Package orchestrate runs trials end to end: dispatch through the capture
// layer, signal extraction, classification, evidence update, persistence.
package orchestrate

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"gauntlet/internal/capture"
	"gauntlet/internal/evidence"
	"gauntlet/internal/logging"
	"gauntlet/internal/signal"
	"gauntlet/internal/store"
	"gauntlet/internal/trial"
)

// Config tunes retry, pacing, and regime handling.
type Config struct {
	// MaxAttempts bounds dispatches per trial; transient outcomes are
	// retried up to this many attempts total.
	MaxAttempts int `yaml:"max_attempts"`
	// BackoffBase and BackoffMax bound the exponential retry backoff.
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
	// DispatchInterval is the minimum gap between dispatches to the
	// target, across all subjects.
	DispatchInterval time.Duration `yaml:"dispatch_interval"`
	// RequireStableRegime makes an evidence invalidation surface as an
	// error so a run against a supposedly settled target stops early.
	RequireStableRegime bool `yaml:"require_stable_regime"`
}

// DefaultConfig returns the stock orchestrator settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		BackoffBase:      2 * time.Second,
		BackoffMax:       30 * time.Second,
		DispatchInterval: time.Second,
	}
}

// Result is the outcome of one RunTrial invocation.
type Result struct {
	Record   *store.Record
	Update   evidence.Update
	Attempts int
}

// Orchestrator coordinates one trial at a time per subject. Safe for
// concurrent use across subjects.
type Orchestrator struct {
	cap        capture.Capture
	extractors *signal.Extractors // nil means no signal extraction
	classifier *trial.Classifier
	acc        *evidence.Accumulator
	st         store.Store
	cfg        Config
	log        *slog.Logger

	// OnUpdate, if set, observes every persisted record with its evidence
	// update. Called after the record is stored, still under the subject's
	// lane lock.
	OnUpdate func(*store.Record, evidence.Update)

	sleep func(context.Context, time.Duration) error
	jitter func() float64

	laneMu sync.Mutex
	lanes  map[string]*sync.Mutex

	dispatchMu   sync.Mutex
	nextDispatch time.Time
}

// New wires an orchestrator. extractors may be nil when the capture layer
// produces no artifacts worth measuring.
func New(cap capture.Capture, extractors *signal.Extractors, classifier *trial.Classifier,
	acc *evidence.Accumulator, st store.Store, cfg Config) *Orchestrator {
	return &Orchestrator{
		cap:        cap,
		extractors: extractors,
		classifier: classifier,
		acc:        acc,
		st:         st,
		cfg:        cfg,
		log:        logging.New("orchestrate"),
		sleep:      sleepCtx,
		jitter:     rand.Float64,
		lanes:      make(map[string]*sync.Mutex),
	}
}

// lane returns the subject's serialization mutex.
func (o *Orchestrator) lane(subjectID string) *sync.Mutex {
	o.laneMu.Lock()
	defer o.laneMu.Unlock()
	mu, ok := o.lanes[subjectID]
	if !ok {
		mu = &sync.Mutex{}
		o.lanes[subjectID] = mu
	}
	return mu
}

// RunTrial runs one trial for the subject and persists exactly one record,
// whatever happens after dispatch. Trials for the same subject never
// overlap; their evidence updates land in dispatch order.
func (o *Orchestrator) RunTrial(ctx context.Context, subjectID string, input trial.InputSpec) (*Result, error) {
	mu := o.lane(subjectID)
	mu.Lock()
	defer mu.Unlock()

	outcome, attempts, retErr := o.dispatch(ctx, subjectID, input)
	return o.finish(subjectID, input, outcome, attempts, retErr)
}

// dispatch runs the attempt loop and always returns a settled outcome, even
// when the loop itself failed; retErr carries the failure, if any.
func (o *Orchestrator) dispatch(ctx context.Context, subjectID string, input trial.InputSpec) (*trial.Outcome, int, error) {
	var outcome *trial.Outcome
	attempts := 0
	for {
		if err := o.waitDispatch(ctx); err != nil {
			return &trial.Outcome{UIState: trial.UITimedOut, Detail: "rate limit wait expired"},
				attempts, &Error{Kind: KindRateLimited, SubjectID: subjectID, Err: err}
		}
		attempts++
		trialRef := uuid.NewString()

		out, err := o.cap.Submit(ctx, input, trialRef)
		switch {
		case err == nil:
			outcome = out
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// Nothing settled; the record must not move the evidence.
			return &trial.Outcome{UIState: trial.UITimedOut, Detail: err.Error()},
				attempts, &Error{Kind: KindCanceled, SubjectID: subjectID, Err: err}
		default:
			// Capture infrastructure fault: a transient observation.
			var cerr *capture.CaptureError
			detail := err.Error()
			if errors.As(err, &cerr) {
				detail = cerr.Error()
			}
			outcome = &trial.Outcome{UIState: trial.UIErrored, Detail: detail}
		}

		if !outcome.UIState.Transient() {
			return outcome, attempts, nil
		}
		if attempts >= o.cfg.MaxAttempts {
			return outcome, attempts,
				&Error{Kind: KindExhaustedRetries, SubjectID: subjectID}
		}

		delay := o.backoff(attempts)
		o.log.Warn("transient outcome, retrying", "subject", subjectID,
			"state", outcome.UIState, "attempt", attempts, "backoff", delay)
		if err := o.sleep(ctx, delay); err != nil {
			return &trial.Outcome{UIState: trial.UITimedOut, Detail: err.Error()},
				attempts, &Error{Kind: KindCanceled, SubjectID: subjectID, Err: err}
		}
	}
}

// finish extracts signals, classifies, folds the evidence, and persists the
// single record for this invocation.
func (o *Orchestrator) finish(subjectID string, input trial.InputSpec,
	outcome *trial.Outcome, attempts int, retErr error) (*Result, error) {

	var sig *trial.Signals
	if outcome.UIState == trial.UIGenerated && o.extractors != nil && outcome.ArtifactRef != "" {
		art, err := signal.CollectFrames(outcome.ArtifactRef)
		if err == nil {
			sig, err = o.extractors.Extract(context.Background(), art, input)
		}
		if err != nil {
			// A failed extraction reads as no signals, never as clear.
			o.log.Warn("signal extraction failed", "subject", subjectID, "error", err)
			sig = nil
		}
	}

	class := o.classifier.Classify(outcome.UIState, sig)
	update := o.acc.Apply(subjectID, class)

	attemptIndex := attempts - 1
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	rec := &store.Record{
		SubjectID:      subjectID,
		Timestamp:      time.Now().UTC(),
		Prompt:         input.Prompt,
		Category:       input.Category,
		AttemptIndex:   attemptIndex,
		UIState:        outcome.UIState,
		Detail:         outcome.Detail,
		Signals:        sig,
		Classification: class,
		LogOddsAfter:   update.LogOdds,
		EvidenceState:  update.State,
		DurationMS:     outcome.DurationMS,
		ArtifactRef:    outcome.ArtifactRef,
		ScreenshotPath: outcome.ScreenshotPath,
	}
	if _, err := o.st.Put(rec); err != nil {
		return nil, &Error{Kind: KindStore, SubjectID: subjectID, Err: err}
	}

	if o.OnUpdate != nil {
		o.OnUpdate(rec, update)
	}
	if update.Invalidated {
		o.log.Warn("evidence invalidated", "subject", subjectID, "trial", rec.TrialID)
	}

	res := &Result{Record: rec, Update: update, Attempts: attempts}
	if retErr != nil {
		return res, retErr
	}
	if update.Invalidated && o.cfg.RequireStableRegime {
		return res, &Error{Kind: KindInvalidation, SubjectID: subjectID}
	}
	return res, nil
}

// waitDispatch enforces the minimum gap between dispatches.
func (o *Orchestrator) waitDispatch(ctx context.Context) error {
	if o.cfg.DispatchInterval <= 0 {
		return ctx.Err()
	}
	o.dispatchMu.Lock()
	now := time.Now()
	wait := o.nextDispatch.Sub(now)
	if wait < 0 {
		wait = 0
	}
	o.nextDispatch = now.Add(wait + o.cfg.DispatchInterval)
	o.dispatchMu.Unlock()

	if wait == 0 {
		return ctx.Err()
	}
	return o.sleep(ctx, wait)
}

// backoff returns the delay before retry n (1-based), exponential with up to
// 50% jitter, capped at BackoffMax.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.cfg.BackoffBase << (attempt - 1)
	if d > o.cfg.BackoffMax || d <= 0 {
		d = o.cfg.BackoffMax
	}
	return d + time.Duration(o.jitter()*0.5*float64(d))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
