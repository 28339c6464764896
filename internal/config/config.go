// Package config loads and validates the harness configuration and suite
// plans.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"gauntlet/internal/capture"
	"gauntlet/internal/evidence"
	"gauntlet/internal/orchestrate"
	"gauntlet/internal/signal"
	"gauntlet/internal/store"
	"gauntlet/internal/trial"
)

// Duration parses "2s" style strings in YAML and JSON.
type Duration struct {
	time.Duration
}

// UnmarshalYAML accepts a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", s, err)
		}
		d.Duration = parsed
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("bad duration value")
	}
	d.Duration = time.Duration(n)
	return nil
}

// MarshalYAML renders the canonical string form.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalJSON accepts a duration string or integer nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", s, err)
		}
		d.Duration = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("bad duration value")
	}
	d.Duration = time.Duration(n)
	return nil
}

// MarshalJSON renders the canonical string form.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// StoreConfig locates the trial log database.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// CaptureConfig is the file-facing browser capture section.
type CaptureConfig struct {
	TargetURL      string                `yaml:"target_url" json:"target_url"`
	Headless       bool                  `yaml:"headless" json:"headless"`
	UserDataDir    string                `yaml:"user_data_dir" json:"user_data_dir"`
	PromptSelector string                `yaml:"prompt_selector" json:"prompt_selector"`
	SubmitSelector string                `yaml:"submit_selector" json:"submit_selector"`
	MediaSelector  string                `yaml:"media_selector" json:"media_selector"`
	PollInterval   Duration              `yaml:"poll_interval" json:"poll_interval"`
	PollTimeout    Duration              `yaml:"poll_timeout" json:"poll_timeout"`
	FrameCount     int                   `yaml:"frame_count" json:"frame_count"`
	FrameInterval  Duration              `yaml:"frame_interval" json:"frame_interval"`
	ArtifactDir    string                `yaml:"artifact_dir" json:"artifact_dir"`
	Patterns       capture.PatternConfig `yaml:"patterns" json:"patterns"`
}

// Browser converts the section to the capture layer's configuration.
func (c CaptureConfig) Browser() capture.BrowserConfig {
	return capture.BrowserConfig{
		TargetURL:      c.TargetURL,
		Headless:       c.Headless,
		UserDataDir:    c.UserDataDir,
		PromptSelector: c.PromptSelector,
		SubmitSelector: c.SubmitSelector,
		MediaSelector:  c.MediaSelector,
		PollInterval:   c.PollInterval.Duration,
		PollTimeout:    c.PollTimeout.Duration,
		FrameCount:     c.FrameCount,
		FrameInterval:  c.FrameInterval.Duration,
		ArtifactDir:    c.ArtifactDir,
		Patterns:       c.Patterns,
	}
}

// Scorer modes for the signal section.
const (
	ScorerAnalyzer = "analyzer"
	ScorerModel    = "model"
)

// SignalConfig selects and tunes the signal extractors.
type SignalConfig struct {
	Analyzer signal.AnalyzerConfig `yaml:"analyzer" json:"analyzer"`
	// Scorer is "analyzer" (programmatic frame analysis plus a static
	// match level) or "model" (a vision model service grades both).
	Scorer                string  `yaml:"scorer" json:"scorer"`
	ModelEndpoint         string  `yaml:"model_endpoint" json:"model_endpoint"`
	ModelAPIKeyEnv        string  `yaml:"model_api_key_env" json:"model_api_key_env"`
	StaticMatchLevel      string  `yaml:"static_match_level" json:"static_match_level"`
	StaticMatchConfidence float64 `yaml:"static_match_confidence" json:"static_match_confidence"`
}

// Extractors builds the configured extractor pair.
func (c SignalConfig) Extractors() (*signal.Extractors, error) {
	switch c.Scorer {
	case ScorerModel:
		if c.ModelEndpoint == "" {
			return nil, fmt.Errorf("model scorer needs signals.model_endpoint")
		}
		m := signal.NewModelScorer(c.ModelEndpoint, os.Getenv(c.ModelAPIKeyEnv))
		return &signal.Extractors{Blur: m, Match: m}, nil
	case ScorerAnalyzer, "":
		return &signal.Extractors{
			Blur: signal.NewAnalyzer(c.Analyzer),
			Match: signal.StaticMatch{
				Level:      trial.ContentMatch(c.StaticMatchLevel),
				Confidence: c.StaticMatchConfidence,
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown signals.scorer %q", c.Scorer)
}

// ClassifierConfig is the file-facing rule-table tuning.
type ClassifierConfig struct {
	HeavyBlurRatio float64 `yaml:"heavy_blur_ratio" json:"heavy_blur_ratio"`
}

// OrchestratorConfig is the file-facing pacing and retry section.
type OrchestratorConfig struct {
	MaxAttempts         int      `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase         Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffMax          Duration `yaml:"backoff_max" json:"backoff_max"`
	DispatchInterval    Duration `yaml:"dispatch_interval" json:"dispatch_interval"`
	RequireStableRegime bool     `yaml:"require_stable_regime" json:"require_stable_regime"`
}

// Orchestrate converts the section to the orchestrator's configuration.
func (c OrchestratorConfig) Orchestrate() orchestrate.Config {
	return orchestrate.Config{
		MaxAttempts:         c.MaxAttempts,
		BackoffBase:         c.BackoffBase.Duration,
		BackoffMax:          c.BackoffMax.Duration,
		DispatchInterval:    c.DispatchInterval.Duration,
		RequireStableRegime: c.RequireStableRegime,
	}
}

// SuiteConfig tunes suite execution.
type SuiteConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// Config is the whole harness configuration.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
	Store        StoreConfig        `yaml:"store" json:"store"`
	Capture      CaptureConfig      `yaml:"capture" json:"capture"`
	Signals      SignalConfig       `yaml:"signals" json:"signals"`
	Classifier   ClassifierConfig   `yaml:"classifier" json:"classifier"`
	Evidence     evidence.Config    `yaml:"evidence" json:"evidence"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" json:"orchestrator"`
	Suite        SuiteConfig        `yaml:"suite" json:"suite"`
}

// Default returns the full stock configuration. Loading unmarshals the file
// on top of it, so absent keys keep their defaults.
func Default() Config {
	bc := capture.DefaultBrowserConfig()
	oc := orchestrate.DefaultConfig()
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Store:   StoreConfig{Path: store.DefaultDBPath},
		Capture: CaptureConfig{
			Headless:       bc.Headless,
			PromptSelector: bc.PromptSelector,
			SubmitSelector: bc.SubmitSelector,
			MediaSelector:  bc.MediaSelector,
			PollInterval:   Duration{bc.PollInterval},
			PollTimeout:    Duration{bc.PollTimeout},
			FrameCount:     bc.FrameCount,
			FrameInterval:  Duration{bc.FrameInterval},
			ArtifactDir:    bc.ArtifactDir,
			Patterns:       bc.Patterns,
		},
		Signals: SignalConfig{
			Analyzer:              signal.DefaultAnalyzerConfig(),
			Scorer:                ScorerAnalyzer,
			StaticMatchLevel:      string(trial.MatchFull),
			StaticMatchConfidence: 0.5,
		},
		Classifier: ClassifierConfig{HeavyBlurRatio: trial.DefaultThresholds().HeavyBlurRatio},
		Evidence:   evidence.DefaultConfig(),
		Orchestrator: OrchestratorConfig{
			MaxAttempts:      oc.MaxAttempts,
			BackoffBase:      Duration{oc.BackoffBase},
			BackoffMax:       Duration{oc.BackoffMax},
			DispatchInterval: Duration{oc.DispatchInterval},
		},
		Suite: SuiteConfig{Workers: 2},
	}
}

// Load reads a config file (YAML or JSON, detected by extension or content)
// over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses config bytes over the defaults. ext is the file extension
// for format hint; empty means detect from content.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	isJSON := ext == ".json" ||
		(ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{"))
	if isJSON {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. The evidence invariants are enforced here
// so a bad configuration fails at startup.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	if err := c.Evidence.Validate(); err != nil {
		return err
	}
	switch c.Signals.Scorer {
	case "", ScorerAnalyzer:
	case ScorerModel:
		if c.Signals.ModelEndpoint == "" {
			return fmt.Errorf("signals.scorer %q needs signals.model_endpoint", ScorerModel)
		}
	default:
		return fmt.Errorf("unknown signals.scorer %q", c.Signals.Scorer)
	}
	switch trial.ContentMatch(c.Signals.StaticMatchLevel) {
	case "", trial.MatchFull, trial.MatchPartial, trial.MatchNone:
	default:
		return fmt.Errorf("unknown signals.static_match_level %q", c.Signals.StaticMatchLevel)
	}
	if c.Classifier.HeavyBlurRatio <= 0 || c.Classifier.HeavyBlurRatio > 1 {
		return fmt.Errorf("classifier.heavy_blur_ratio %v outside (0, 1]", c.Classifier.HeavyBlurRatio)
	}
	if c.Orchestrator.MaxAttempts < 1 {
		return fmt.Errorf("orchestrator.max_attempts must be >= 1")
	}
	if c.Suite.Workers < 1 {
		return fmt.Errorf("suite.workers must be >= 1")
	}
	return nil
}
