package signal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gauntlet/internal/logging"
	"gauntlet/internal/trial"
)

// ModelScorer asks a vision model service to grade an artifact. It serves
// both scorer roles from a single request per artifact: the service sees the
// frames and the requested intent together and reports obstruction and match
// in one pass.
//
// The service replies in a line format, one field per line:
//
//	BLUR_RATIO: 0.40
//	MOSAIC: no
//	BLACK_BARS: yes
//	MATCH: PARTIAL
//	CONFIDENCE: 0.85
//	NOTES: lower half obscured
type ModelScorer struct {
	Endpoint string
	APIKey   string
	Client   *http.Client

	log *slog.Logger

	mu    sync.Mutex
	cache map[string]*modelReport
}

type modelReport struct {
	blur  Blur
	match Match
}

// NewModelScorer returns a scorer for the given service endpoint.
func NewModelScorer(endpoint, apiKey string) *ModelScorer {
	return &ModelScorer{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 60 * time.Second},
		log:      logging.New("signal"),
		cache:    make(map[string]*modelReport),
	}
}

// ScoreBlur implements BlurScorer via the shared model report.
func (m *ModelScorer) ScoreBlur(ctx context.Context, art Artifact) (*Blur, error) {
	rep, err := m.report(ctx, art, trial.InputSpec{})
	if err != nil {
		return nil, err
	}
	b := rep.blur
	return &b, nil
}

// ScoreMatch implements MatchScorer via the shared model report.
func (m *ModelScorer) ScoreMatch(ctx context.Context, art Artifact, intent trial.InputSpec) (*Match, error) {
	rep, err := m.report(ctx, art, intent)
	if err != nil {
		return nil, err
	}
	mt := rep.match
	return &mt, nil
}

func (m *ModelScorer) report(ctx context.Context, art Artifact, intent trial.InputSpec) (*modelReport, error) {
	m.mu.Lock()
	if rep, ok := m.cache[art.Ref]; ok {
		m.mu.Unlock()
		return rep, nil
	}
	m.mu.Unlock()

	rep, err := m.query(ctx, art, intent)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[art.Ref] = rep
	m.mu.Unlock()
	return rep, nil
}

type scoreRequest struct {
	Prompt string   `json:"prompt"`
	Frames []string `json:"frames"` // base64-encoded images
}

func (m *ModelScorer) query(ctx context.Context, art Artifact, intent trial.InputSpec) (*modelReport, error) {
	if len(art.Frames) == 0 {
		return nil, fmt.Errorf("artifact %s has no frames", art.Ref)
	}
	req := scoreRequest{Prompt: intent.Prompt}
	for _, path := range art.Frames {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		req.Frames = append(req.Frames, base64.StdEncoding.EncodeToString(data))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.APIKey)
	}

	resp, err := m.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("score request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("score service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	rep, err := parseReport(resp.Body, len(art.Frames))
	if err != nil {
		return nil, err
	}
	m.log.Debug("model report", "artifact", art.Ref,
		"blur_ratio", rep.blur.Ratio, "match", rep.match.Level, "confidence", rep.match.Confidence)
	return rep, nil
}

// parseReport reads the line-format reply. Unknown lines are skipped so the
// service can add fields without breaking old harnesses; a reply with no
// recognized fields is an error.
func parseReport(r io.Reader, frames int) (*modelReport, error) {
	rep := &modelReport{
		blur:  Blur{FramesTotal: frames},
		match: Match{Level: trial.MatchNone},
	}
	seen := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "BLUR_RATIO":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("bad BLUR_RATIO %q: %w", val, err)
			}
			rep.blur.Ratio = f
			rep.blur.FramesCensored = int(f*float64(frames) + 0.5)
			seen = true
		case "MOSAIC":
			rep.blur.HasMosaic = parseYes(val)
			seen = true
		case "BLACK_BARS":
			rep.blur.HasDarkBars = parseYes(val)
			seen = true
		case "MATCH":
			switch strings.ToUpper(val) {
			case "FULL":
				rep.match.Level = trial.MatchFull
			case "PARTIAL":
				rep.match.Level = trial.MatchPartial
			case "NONE":
				rep.match.Level = trial.MatchNone
			default:
				return nil, fmt.Errorf("bad MATCH %q", val)
			}
			seen = true
		case "CONFIDENCE":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("bad CONFIDENCE %q: %w", val, err)
			}
			rep.match.Confidence = f
			seen = true
		case "NOTES":
			rep.match.Notes = val
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read score reply: %w", err)
	}
	if !seen {
		return nil, fmt.Errorf("score reply carried no recognized fields")
	}
	return rep, nil
}

func parseYes(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true
	}
	return false
}
