// Package mcp exposes the trial store and evidence ledger as MCP tools
// so agent clients can inspect experiment state over stdio.
package mcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"gauntlet/internal/display"
	"gauntlet/internal/evidence"
	"gauntlet/internal/store"
	"gauntlet/internal/trial"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server around a trial store and an evidence
// accumulator. It is sessionless: every tool call reads current state.
type Server struct {
	MCPServer *sdkmcp.Server

	st  store.Store
	acc *evidence.Accumulator
}

// NewServer creates an MCP server with trial inspection and export tools.
func NewServer(st store.Store, acc *evidence.Accumulator) *Server {
	s := &Server{st: st, acc: acc}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "gauntlet", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_stats",
		Description: "Get aggregate trial statistics: totals by classification and UI state, plus per-subject evidence rollups.",
	}, s.handleGetStats)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_trials",
		Description: "List trial records, newest last. Filter by subject, classification, or time window.",
	}, s.handleListTrials)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_trial",
		Description: "Get a single trial record by its store ID.",
	}, s.handleGetTrial)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_evidence",
		Description: "Get the live evidence snapshot for a subject: log odds, trial count, and hypothesis state.",
	}, s.handleGetEvidence)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "export_csv",
		Description: "Export the trial log to a CSV file at the given path.",
	}, s.handleExportCSV)
}

// --- Tool input/output types ---

type getStatsInput struct{}

type subjectStatsOutput struct {
	SubjectID  string  `json:"subject_id"`
	Trials     int     `json:"trials"`
	LogOdds    float64 `json:"log_odds"`
	State      string  `json:"state"`
	StateHuman string  `json:"state_human"`
}

type getStatsOutput struct {
	Total            int                  `json:"total"`
	ByClassification map[string]int       `json:"by_classification"`
	ByUIState        map[string]int       `json:"by_ui_state"`
	Subjects         []subjectStatsOutput `json:"subjects"`
}

type listTrialsInput struct {
	SubjectID      string `json:"subject_id,omitempty" jsonschema:"filter by subject ID"`
	Classification string `json:"classification,omitempty" jsonschema:"filter by classification code (FULL_SUCCESS, PARTIAL_SUCCESS, SOFT_BLOCK, HARD_BLOCK, INCONCLUSIVE)"`
	SinceRFC3339   string `json:"since,omitempty" jsonschema:"only trials at or after this RFC3339 timestamp"`
	Limit          int    `json:"limit,omitempty" jsonschema:"max records to return (0 = no limit)"`
}

type trialRow struct {
	TrialID        int64    `json:"trial_id"`
	SubjectID      string   `json:"subject_id"`
	Timestamp      string   `json:"timestamp"`
	UIState        string   `json:"ui_state"`
	Classification string   `json:"classification"`
	BlurRatio      *float64 `json:"blur_ratio,omitempty"`
	ContentMatch   string   `json:"content_match,omitempty"`
	LogOddsAfter   float64  `json:"log_odds_after"`
	EvidenceState  string   `json:"evidence_state"`
	DurationMS     int64    `json:"duration_ms"`
}

type listTrialsOutput struct {
	Trials []trialRow `json:"trials"`
	Total  int        `json:"total"`
}

type getTrialInput struct {
	TrialID int64 `json:"trial_id" jsonschema:"trial record ID from list_trials"`
}

type getTrialOutput struct {
	Found bool          `json:"found"`
	Trial *store.Record `json:"trial,omitempty"`
}

type getEvidenceInput struct {
	SubjectID string `json:"subject_id" jsonschema:"subject whose evidence to read"`
}

type getEvidenceOutput struct {
	SubjectID   string  `json:"subject_id"`
	LogOdds     float64 `json:"log_odds"`
	TrialCount  int     `json:"trial_count"`
	State       string  `json:"state"`
	StateHuman  string  `json:"state_human"`
	LastUpdated string  `json:"last_updated,omitempty"`
}

type exportCSVInput struct {
	Path string `json:"path" jsonschema:"destination file path for the CSV export"`
}

type exportCSVOutput struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// --- Tool handlers ---

func (s *Server) handleGetStats(ctx context.Context, _ *sdkmcp.CallToolRequest, _ getStatsInput) (*sdkmcp.CallToolResult, getStatsOutput, error) {
	stats, err := s.st.Stats()
	if err != nil {
		return nil, getStatsOutput{}, fmt.Errorf("get_stats: %w", err)
	}

	out := getStatsOutput{
		Total:            stats.Total,
		ByClassification: make(map[string]int, len(stats.ByClassification)),
		ByUIState:        make(map[string]int, len(stats.ByUIState)),
	}
	for c, n := range stats.ByClassification {
		out.ByClassification[string(c)] = n
	}
	for u, n := range stats.ByUIState {
		out.ByUIState[string(u)] = n
	}
	for _, sub := range stats.Subjects {
		out.Subjects = append(out.Subjects, subjectStatsOutput{
			SubjectID:  sub.SubjectID,
			Trials:     sub.Trials,
			LogOdds:    sub.LastLogOdds,
			State:      string(sub.LastState),
			StateHuman: display.EvidenceState(string(sub.LastState)),
		})
	}
	return nil, out, nil
}

func (s *Server) handleListTrials(ctx context.Context, _ *sdkmcp.CallToolRequest, input listTrialsInput) (*sdkmcp.CallToolResult, listTrialsOutput, error) {
	q := store.Query{
		SubjectID:      input.SubjectID,
		Classification: trial.Classification(input.Classification),
		Limit:          input.Limit,
	}
	if input.SinceRFC3339 != "" {
		since, err := time.Parse(time.RFC3339, input.SinceRFC3339)
		if err != nil {
			return nil, listTrialsOutput{}, fmt.Errorf("list_trials: bad since timestamp %q: %w", input.SinceRFC3339, err)
		}
		q.Since = since
	}

	recs, err := s.st.List(q)
	if err != nil {
		return nil, listTrialsOutput{}, fmt.Errorf("list_trials: %w", err)
	}

	out := listTrialsOutput{Total: len(recs)}
	for _, r := range recs {
		row := trialRow{
			TrialID:        r.TrialID,
			SubjectID:      r.SubjectID,
			Timestamp:      r.Timestamp.Format(time.RFC3339),
			UIState:        string(r.UIState),
			Classification: string(r.Classification),
			LogOddsAfter:   r.LogOddsAfter,
			EvidenceState:  string(r.EvidenceState),
			DurationMS:     r.DurationMS,
		}
		if r.Signals != nil {
			ratio := r.Signals.BlurRatio
			row.BlurRatio = &ratio
			row.ContentMatch = string(r.Signals.ContentMatch)
		}
		out.Trials = append(out.Trials, row)
	}
	return nil, out, nil
}

func (s *Server) handleGetTrial(ctx context.Context, _ *sdkmcp.CallToolRequest, input getTrialInput) (*sdkmcp.CallToolResult, getTrialOutput, error) {
	rec, err := s.st.Get(input.TrialID)
	if err != nil {
		return nil, getTrialOutput{}, fmt.Errorf("get_trial: %w", err)
	}
	if rec == nil {
		return nil, getTrialOutput{Found: false}, nil
	}
	return nil, getTrialOutput{Found: true, Trial: rec}, nil
}

func (s *Server) handleGetEvidence(ctx context.Context, _ *sdkmcp.CallToolRequest, input getEvidenceInput) (*sdkmcp.CallToolResult, getEvidenceOutput, error) {
	if input.SubjectID == "" {
		return nil, getEvidenceOutput{}, fmt.Errorf("subject_id is required")
	}
	snap := s.acc.Snapshot(input.SubjectID)
	out := getEvidenceOutput{
		SubjectID:  snap.SubjectID,
		LogOdds:    snap.LogOdds,
		TrialCount: snap.TrialCount,
		State:      string(snap.State),
		StateHuman: display.EvidenceState(string(snap.State)),
	}
	if !snap.LastUpdated.IsZero() {
		out.LastUpdated = snap.LastUpdated.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleExportCSV(ctx context.Context, _ *sdkmcp.CallToolRequest, input exportCSVInput) (*sdkmcp.CallToolResult, exportCSVOutput, error) {
	if input.Path == "" {
		return nil, exportCSVOutput{}, fmt.Errorf("path is required")
	}
	recs, err := s.st.List(store.Query{})
	if err != nil {
		return nil, exportCSVOutput{}, fmt.Errorf("export_csv: %w", err)
	}
	f, err := os.Create(input.Path)
	if err != nil {
		return nil, exportCSVOutput{}, fmt.Errorf("export_csv: %w", err)
	}
	defer f.Close()
	if err := store.ExportCSV(f, recs); err != nil {
		return nil, exportCSVOutput{}, fmt.Errorf("export_csv: %w", err)
	}
	return nil, exportCSVOutput{Path: input.Path, Rows: len(recs)}, nil
}
