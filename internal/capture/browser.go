package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"gauntlet/internal/logging"
	"gauntlet/internal/trial"
)

// BrowserConfig tells the browser capture how to reach and read the target.
type BrowserConfig struct {
	// TargetURL is the generation page.
	TargetURL string `yaml:"target_url"`
	Headless  bool   `yaml:"headless"`
	// UserDataDir persists the browser profile between runs so an existing
	// login session is reused.
	UserDataDir string `yaml:"user_data_dir"`

	// Selectors on the generation page.
	PromptSelector string `yaml:"prompt_selector"`
	SubmitSelector string `yaml:"submit_selector"`
	MediaSelector  string `yaml:"media_selector"`

	// PollInterval and PollTimeout bound the settle watch.
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`

	// FrameCount frames are sampled FrameInterval apart once media appears.
	FrameCount    int           `yaml:"frame_count"`
	FrameInterval time.Duration `yaml:"frame_interval"`

	// ArtifactDir receives per-trial frame directories and screenshots.
	ArtifactDir string `yaml:"artifact_dir"`

	Patterns PatternConfig `yaml:"patterns"`
}

// DefaultBrowserConfig returns workable defaults for everything but the
// target URL and selectors.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:       true,
		PromptSelector: `textarea`,
		SubmitSelector: `button[type=submit]`,
		MediaSelector:  `video, img.result`,
		PollInterval:   2 * time.Second,
		PollTimeout:    120 * time.Second,
		FrameCount:     6,
		FrameInterval:  500 * time.Millisecond,
		ArtifactDir:    ".gauntlet/artifacts",
		Patterns:       DefaultPatternConfig(),
	}
}

// Browser implements Capture with a real Chrome instance via chromedp.
type Browser struct {
	cfg      BrowserConfig
	patterns *PatternSet
	log      *slog.Logger
}

// NewBrowser compiles the pattern set and returns a browser capture.
func NewBrowser(cfg BrowserConfig) (*Browser, error) {
	if cfg.TargetURL == "" {
		return nil, fmt.Errorf("browser capture needs a target URL")
	}
	ps, err := CompilePatterns(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	return &Browser{cfg: cfg, patterns: ps, log: logging.New("capture")}, nil
}

// Submit navigates to the target, submits the input, and polls until the
// page settles or the poll window closes.
func (b *Browser) Submit(ctx context.Context, input trial.InputSpec, trialRef string) (*trial.Outcome, error) {
	start := time.Now()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if b.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.cfg.UserDataDir))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	b.log.Info("submitting trial", "trial", trialRef, "target", b.cfg.TargetURL)
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(b.cfg.TargetURL),
		chromedp.WaitVisible(b.cfg.PromptSelector, chromedp.ByQuery),
		chromedp.Clear(b.cfg.PromptSelector, chromedp.ByQuery),
		chromedp.SendKeys(b.cfg.PromptSelector, input.Prompt, chromedp.ByQuery),
		chromedp.Click(b.cfg.SubmitSelector, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CaptureError{Op: "submit", Err: err}
	}

	outcome, err := b.watch(browserCtx, trialRef)
	if err != nil {
		return nil, err
	}
	outcome.DurationMS = time.Since(start).Milliseconds()
	b.log.Info("trial settled", "trial", trialRef, "state", outcome.UIState,
		"duration_ms", outcome.DurationMS)
	return outcome, nil
}

// watch polls the page until a settled state or the poll window closes.
// Closing the window is a TIMED_OUT observation, not an error.
func (b *Browser) watch(browserCtx context.Context, trialRef string) (*trial.Outcome, error) {
	deadline := time.Now().Add(b.cfg.PollTimeout)
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var bodyText string
		var hasMedia bool
		err := chromedp.Run(browserCtx,
			chromedp.Text("body", &bodyText, chromedp.ByQuery),
			chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%q) !== null`, b.cfg.MediaSelector), &hasMedia),
		)
		if err != nil {
			if browserCtx.Err() != nil {
				return nil, browserCtx.Err()
			}
			return nil, &CaptureError{Op: "poll", Err: err}
		}

		if v := b.patterns.Read(bodyText, hasMedia); v.Settled {
			return b.settle(browserCtx, trialRef, v)
		}

		if time.Now().After(deadline) {
			shot, _ := b.screenshot(browserCtx, trialRef)
			return &trial.Outcome{UIState: trial.UITimedOut, ScreenshotPath: shot}, nil
		}
		select {
		case <-browserCtx.Done():
			return nil, browserCtx.Err()
		case <-ticker.C:
		}
	}
}

// settle records the settled state: a screenshot always, sampled frames when
// media was produced.
func (b *Browser) settle(browserCtx context.Context, trialRef string, v Verdict) (*trial.Outcome, error) {
	out := &trial.Outcome{UIState: v.State, Detail: v.Matched}
	shot, err := b.screenshot(browserCtx, trialRef)
	if err != nil {
		return nil, err
	}
	out.ScreenshotPath = shot

	if v.State == trial.UIGenerated {
		ref, err := b.sampleFrames(browserCtx, trialRef)
		if err != nil {
			return nil, err
		}
		out.ArtifactRef = ref
	}
	return out, nil
}

// sampleFrames screenshots the media element FrameCount times so motion and
// per-frame masking both show up in the artifact.
func (b *Browser) sampleFrames(browserCtx context.Context, trialRef string) (string, error) {
	dir := filepath.Join(b.cfg.ArtifactDir, trialRef)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &CaptureError{Op: "artifact dir", Err: err}
	}
	for i := 0; i < b.cfg.FrameCount; i++ {
		var buf []byte
		err := chromedp.Run(browserCtx,
			chromedp.Screenshot(b.cfg.MediaSelector, &buf, chromedp.ByQuery),
		)
		if err != nil {
			if browserCtx.Err() != nil {
				return "", browserCtx.Err()
			}
			return "", &CaptureError{Op: "frame sample", Err: err}
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		if err := os.WriteFile(path, buf, 0644); err != nil {
			return "", &CaptureError{Op: "frame write", Err: err}
		}
		if i < b.cfg.FrameCount-1 {
			select {
			case <-browserCtx.Done():
				return "", browserCtx.Err()
			case <-time.After(b.cfg.FrameInterval):
			}
		}
	}
	return dir, nil
}

func (b *Browser) screenshot(browserCtx context.Context, trialRef string) (string, error) {
	if err := os.MkdirAll(b.cfg.ArtifactDir, 0755); err != nil {
		return "", &CaptureError{Op: "artifact dir", Err: err}
	}
	var buf []byte
	if err := chromedp.Run(browserCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		if browserCtx.Err() != nil {
			return "", browserCtx.Err()
		}
		return "", &CaptureError{Op: "screenshot", Err: err}
	}
	path := filepath.Join(b.cfg.ArtifactDir, trialRef+".png")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", &CaptureError{Op: "screenshot write", Err: err}
	}
	return path, nil
}
