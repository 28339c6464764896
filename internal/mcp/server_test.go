package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gauntlet/internal/evidence"
	mcpserver "gauntlet/internal/mcp"
	"gauntlet/internal/store"
	"gauntlet/internal/trial"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func seededServer(t *testing.T) *mcpserver.Server {
	t.Helper()

	st := store.NewMemStore()
	t.Cleanup(func() { st.Close() })

	acc, err := evidence.New(evidence.DefaultConfig())
	if err != nil {
		t.Fatalf("evidence.New: %v", err)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	recs := []*store.Record{
		{
			SubjectID:      "subj-scenery",
			Timestamp:      base,
			Prompt:         "mountain lake at dawn",
			UIState:        trial.UIGenerated,
			Signals:        &trial.Signals{BlurRatio: 0, ContentMatch: trial.MatchFull, FramesTotal: 6},
			Classification: trial.FullSuccess,
			LogOddsAfter:   1.0,
			EvidenceState:  evidence.Open,
			DurationMS:     4200,
		},
		{
			SubjectID:      "subj-scenery",
			Timestamp:      base.Add(time.Minute),
			Prompt:         "mountain lake at dusk",
			UIState:        trial.UIBlocked,
			Classification: trial.HardBlock,
			LogOddsAfter:   0,
			EvidenceState:  evidence.Open,
			DurationMS:     800,
		},
		{
			SubjectID:      "subj-people",
			Timestamp:      base.Add(2 * time.Minute),
			Prompt:         "crowded street market",
			UIState:        trial.UITimedOut,
			Classification: trial.Inconclusive,
			LogOddsAfter:   0,
			EvidenceState:  evidence.Open,
			DurationMS:     120000,
		},
	}
	for _, r := range recs {
		if _, err := st.Put(r); err != nil {
			t.Fatalf("seed Put: %v", err)
		}
	}

	acc.Apply("subj-scenery", trial.FullSuccess)
	acc.Apply("subj-scenery", trial.HardBlock)

	return mcpserver.NewServer(st, acc)
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		for _, c := range res.Content {
			if tc, ok := c.(*sdkmcp.TextContent); ok {
				t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
			}
		}
		t.Fatalf("CallTool(%s) returned error", name)
	}
	result := make(map[string]any)
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), &result); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return result
		}
	}
	t.Fatalf("no text content in tool result")
	return nil
}

func TestServer_ToolDiscovery(t *testing.T) {
	srv := seededServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	want := map[string]bool{
		"get_stats":    false,
		"list_trials":  false,
		"get_trial":    false,
		"get_evidence": false,
		"export_csv":   false,
	}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestServer_GetStats(t *testing.T) {
	srv := seededServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "get_stats", nil)

	if total, _ := out["total"].(float64); total != 3 {
		t.Errorf("total = %v, want 3", out["total"])
	}
	byClass, _ := out["by_classification"].(map[string]any)
	if byClass["FULL_SUCCESS"] != float64(1) || byClass["HARD_BLOCK"] != float64(1) {
		t.Errorf("by_classification = %v", byClass)
	}
	subjects, _ := out["subjects"].([]any)
	if len(subjects) != 2 {
		t.Fatalf("subjects = %v, want 2 entries", subjects)
	}
}

func TestServer_ListTrials_Filters(t *testing.T) {
	srv := seededServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "list_trials", map[string]any{
		"subject_id": "subj-scenery",
	})
	if total, _ := out["total"].(float64); total != 2 {
		t.Fatalf("total = %v, want 2", out["total"])
	}

	trials, _ := out["trials"].([]any)
	first, _ := trials[0].(map[string]any)
	if first["classification"] != "FULL_SUCCESS" {
		t.Errorf("first classification = %v", first["classification"])
	}
	if _, ok := first["blur_ratio"]; !ok {
		t.Errorf("expected blur_ratio on record with signals")
	}
	second, _ := trials[1].(map[string]any)
	if _, ok := second["blur_ratio"]; ok {
		t.Errorf("blur_ratio present on record without signals")
	}

	out = callTool(t, ctx, session, "list_trials", map[string]any{
		"classification": "INCONCLUSIVE",
	})
	if total, _ := out["total"].(float64); total != 1 {
		t.Errorf("INCONCLUSIVE total = %v, want 1", out["total"])
	}
}

func TestServer_ListTrials_BadSince(t *testing.T) {
	srv := seededServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "list_trials",
		Arguments: map[string]any{"since": "yesterday"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for unparseable since timestamp")
	}
}

func TestServer_GetTrial(t *testing.T) {
	srv := seededServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "get_trial", map[string]any{"trial_id": 1})
	if found, _ := out["found"].(bool); !found {
		t.Fatalf("trial 1 not found: %v", out)
	}

	out = callTool(t, ctx, session, "get_trial", map[string]any{"trial_id": 999})
	if found, _ := out["found"].(bool); found {
		t.Fatalf("trial 999 should not exist: %v", out)
	}
}

func TestServer_GetEvidence(t *testing.T) {
	srv := seededServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "get_evidence", map[string]any{
		"subject_id": "subj-scenery",
	})
	if lo, _ := out["log_odds"].(float64); lo != 0 {
		t.Errorf("log_odds = %v, want 0 (+1.0 then -1.0)", out["log_odds"])
	}
	if out["state"] != "OPEN" {
		t.Errorf("state = %v, want OPEN", out["state"])
	}
	if n, _ := out["trial_count"].(float64); n != 2 {
		t.Errorf("trial_count = %v, want 2", out["trial_count"])
	}

	// Unknown subjects read as fresh, not as errors.
	out = callTool(t, ctx, session, "get_evidence", map[string]any{
		"subject_id": "subj-never-seen",
	})
	if n, _ := out["trial_count"].(float64); n != 0 {
		t.Errorf("fresh trial_count = %v, want 0", out["trial_count"])
	}
}

func TestServer_ExportCSV(t *testing.T) {
	srv := seededServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	path := filepath.Join(t.TempDir(), "trials.csv")
	out := callTool(t, ctx, session, "export_csv", map[string]any{"path": path})
	if rows, _ := out["rows"].(float64); rows != 3 {
		t.Errorf("rows = %v, want 3", out["rows"])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("export has %d lines, want header + 3 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "trial_id,subject_id,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
}

func TestWatchParent_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mcpserver.WatchParent(ctx, cancel)

	cancel()

	// Verify the goroutine doesn't panic or block after context cancel.
	time.Sleep(50 * time.Millisecond)
}
