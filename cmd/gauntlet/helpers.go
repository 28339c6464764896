package main

import (
	"fmt"

	"gauntlet/internal/capture"
	"gauntlet/internal/config"
	"gauntlet/internal/evidence"
	"gauntlet/internal/logging"
	"gauntlet/internal/orchestrate"
	"gauntlet/internal/store"
	"gauntlet/internal/trial"
)

// loadConfig resolves the effective configuration (file over defaults, then
// flag overrides) and initializes logging from it.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if rootFlags.config != "" {
		c, err := config.Load(rootFlags.config)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		c := config.Default()
		cfg = &c
	}

	if rootFlags.logLevel != "" {
		cfg.Logging.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Logging.Format = rootFlags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logging.Init(level, cfg.Logging.Format)
	return cfg, nil
}

// rehydrate replays the stored trial log through a fresh accumulator so the
// in-memory evidence matches what past runs persisted. Records replay in
// trial ID order, which is dispatch order.
func rehydrate(st store.Store, cfg evidence.Config) (*evidence.Accumulator, error) {
	acc, err := evidence.New(cfg)
	if err != nil {
		return nil, err
	}
	recs, err := st.List(store.Query{})
	if err != nil {
		return nil, fmt.Errorf("replay trial log: %w", err)
	}
	for _, r := range recs {
		acc.Apply(r.SubjectID, r.Classification)
	}
	return acc, nil
}

// harness bundles the wired components behind the run and suite commands.
type harness struct {
	cfg  *config.Config
	st   store.Store
	acc  *evidence.Accumulator
	orch *orchestrate.Orchestrator
}

// buildHarness opens the store, rehydrates evidence, and wires the capture,
// signal, and classification layers into an orchestrator.
func buildHarness(cfg *config.Config) (*harness, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	acc, err := rehydrate(st, cfg.Evidence)
	if err != nil {
		st.Close()
		return nil, err
	}

	browser, err := capture.NewBrowser(cfg.Capture.Browser())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("capture: %w", err)
	}

	extractors, err := cfg.Signals.Extractors()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("signals: %w", err)
	}

	classifier := trial.NewClassifier(trial.Thresholds{
		HeavyBlurRatio: cfg.Classifier.HeavyBlurRatio,
	})

	orch := orchestrate.New(browser, extractors, classifier, acc, st, cfg.Orchestrator.Orchestrate())
	return &harness{cfg: cfg, st: st, acc: acc, orch: orch}, nil
}

func (h *harness) Close() error {
	return h.st.Close()
}
