//go:build e2e

package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gauntlet/internal/trial"
)

// fakeTargetPage simulates a generation frontend: a prompt box and a submit
// button. Prompts containing "forbidden" settle as a refusal; everything
// else settles as a rendered image after a short delay.
const fakeTargetPage = `<!DOCTYPE html>
<html><body>
<textarea id="prompt"></textarea>
<button type="submit" onclick="go()">Create</button>
<div id="status"></div>
<div id="out"></div>
<script>
function go() {
  var p = document.getElementById('prompt').value;
  var status = document.getElementById('status');
  status.textContent = 'Generating...';
  setTimeout(function() {
    if (p.indexOf('forbidden') >= 0) {
      status.textContent = 'This request violates our content policy.';
    } else {
      status.textContent = '';
      document.getElementById('out').innerHTML =
        '<img class="result" src="data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg==">';
    }
  }, 1500);
}
</script>
</body></html>`

func e2eBrowser(t *testing.T, targetURL string) *Browser {
	t.Helper()
	cfg := DefaultBrowserConfig()
	cfg.TargetURL = targetURL
	cfg.PromptSelector = "#prompt"
	cfg.MediaSelector = "img.result"
	cfg.PollInterval = 500 * time.Millisecond
	cfg.PollTimeout = 15 * time.Second
	cfg.FrameCount = 2
	cfg.FrameInterval = 100 * time.Millisecond
	cfg.ArtifactDir = t.TempDir()
	b, err := NewBrowser(cfg)
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	return b
}

func TestBrowser_GeneratedFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fakeTargetPage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b := e2eBrowser(t, srv.URL)
	out, err := b.Submit(ctx, trial.InputSpec{Prompt: "a red kite"}, "e2e-gen")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.UIState != trial.UIGenerated {
		t.Fatalf("state = %s, want GENERATED", out.UIState)
	}
	if out.ArtifactRef == "" {
		t.Error("generated outcome carries no artifact")
	}
}

func TestBrowser_BlockedFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fakeTargetPage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b := e2eBrowser(t, srv.URL)
	out, err := b.Submit(ctx, trial.InputSpec{Prompt: "something forbidden"}, "e2e-block")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.UIState != trial.UIBlocked {
		t.Fatalf("state = %s, want BLOCKED", out.UIState)
	}
	if out.Detail == "" {
		t.Error("blocked outcome carries no matched text")
	}
}

func TestBrowser_TimeoutIsObservation(t *testing.T) {
	// A page that never settles: no media, no terminal copy.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><textarea id="prompt"></textarea>
			<button type="submit">Create</button></body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b := e2eBrowser(t, srv.URL)
	b.cfg.PollTimeout = 3 * time.Second
	out, err := b.Submit(ctx, trial.InputSpec{Prompt: "anything"}, "e2e-timeout")
	if err != nil {
		t.Fatalf("Submit returned error for a timeout: %v", err)
	}
	if out.UIState != trial.UITimedOut {
		t.Errorf("state = %s, want TIMED_OUT", out.UIState)
	}
}
