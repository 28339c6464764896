package config

import (
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestParse_YAMLOverlaysDefaults(t *testing.T) {
	in := `
capture:
  target_url: https://target.example/create
  poll_timeout: 90s
  headless: false
evidence:
  accept_threshold: 2.0
logging:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(in), ".yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Capture.TargetURL != "https://target.example/create" {
		t.Errorf("target_url = %q", cfg.Capture.TargetURL)
	}
	if cfg.Capture.PollTimeout.Duration != 90*time.Second {
		t.Errorf("poll_timeout = %v, want 90s", cfg.Capture.PollTimeout.Duration)
	}
	if cfg.Capture.Headless {
		t.Error("headless override lost")
	}
	// Untouched keys keep their defaults.
	if cfg.Capture.PollInterval.Duration != 2*time.Second {
		t.Errorf("poll_interval default lost: %v", cfg.Capture.PollInterval.Duration)
	}
	if cfg.Evidence.AcceptThreshold != 2.0 {
		t.Errorf("accept_threshold = %v, want 2.0", cfg.Evidence.AcceptThreshold)
	}
	if cfg.Evidence.RejectThreshold != -1.5 {
		t.Errorf("reject_threshold default lost: %v", cfg.Evidence.RejectThreshold)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestParse_JSONDetectedByContent(t *testing.T) {
	in := `{"suite": {"workers": 8}}`
	cfg, err := Parse([]byte(in), "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Suite.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Suite.Workers)
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad log level", "logging:\n  level: chatty\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"bad scorer", "signals:\n  scorer: oracle\n"},
		{"model scorer without endpoint", "signals:\n  scorer: model\n"},
		{"bad static match level", "signals:\n  static_match_level: EXACT\n"},
		{"blur ratio above one", "classifier:\n  heavy_blur_ratio: 1.5\n"},
		{"zero attempts", "orchestrator:\n  max_attempts: 0\n"},
		{"zero workers", "suite:\n  workers: 0\n"},
		{"accept threshold inside single step", "evidence:\n  accept_threshold: 0.5\n"},
		{"bad duration", "capture:\n  poll_timeout: fortnight\n"},
		{"not yaml at all", "{{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.in), ".yaml"); err == nil {
				t.Error("invalid config parsed without error")
			}
		})
	}
}

func TestSignalConfig_Extractors(t *testing.T) {
	cfg := Default()
	ex, err := cfg.Signals.Extractors()
	if err != nil {
		t.Fatalf("Extractors: %v", err)
	}
	if ex.Blur == nil || ex.Match == nil {
		t.Error("analyzer extractors incomplete")
	}

	cfg.Signals.Scorer = ScorerModel
	cfg.Signals.ModelEndpoint = "https://scorer.example/v1/grade"
	ex, err = cfg.Signals.Extractors()
	if err != nil {
		t.Fatalf("Extractors(model): %v", err)
	}
	if ex.Blur == nil || ex.Match == nil {
		t.Error("model extractors incomplete")
	}
}
