package format_test

import (
	"strings"
	"testing"
	"time"

	"gauntlet/internal/format"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Subject", "Trials", "Log Odds")
	tb.Row("subj-scenery", 12, "+1.30")
	tb.Row("subj-people", 9, "-2.10")
	out := tb.String()

	if !strings.Contains(out, "Subject") {
		t.Errorf("expected header 'Subject' in output:\n%s", out)
	}
	if !strings.Contains(out, "subj-scenery") {
		t.Errorf("expected 'subj-scenery' in output:\n%s", out)
	}
	// ASCII uses box-drawing characters from StyleLight
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_BasicTable(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Classification", "Count")
	tb.Row("FULL_SUCCESS", 30)
	tb.Row("HARD_BLOCK", 12)
	out := tb.String()

	if !strings.Contains(out, "| Classification") {
		t.Errorf("expected markdown header with '| Classification':\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator '---':\n%s", out)
	}
}

func TestCSV_BasicTable(t *testing.T) {
	tb := format.NewTable(format.CSV)
	tb.Header("subject", "trials")
	tb.Row("subj-a", 4)
	out := tb.String()

	if !strings.Contains(out, "subject,trials") {
		t.Errorf("expected csv header line:\n%s", out)
	}
	if !strings.Contains(out, "subj-a,4") {
		t.Errorf("expected csv data line:\n%s", out)
	}
	if strings.Contains(out, "|") || strings.Contains(out, "───") {
		t.Errorf("csv output carries table decoration:\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Classification", "Count")
	tb.Row("FULL_SUCCESS", 30)
	tb.Footer("TOTAL", 42)
	out := tb.String()

	if !strings.Contains(out, "TOTAL") || !strings.Contains(out, "42") {
		t.Errorf("expected footer in output:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want format.Mode
		ok   bool
	}{
		{"", format.ASCII, true},
		{"table", format.ASCII, true},
		{"markdown", format.Markdown, true},
		{"md", format.Markdown, true},
		{"csv", format.CSV, true},
		{"xml", format.ASCII, false},
	}
	for _, tc := range tests {
		got, ok := format.ParseMode(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseMode(%q) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFmtLogOdds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "+0.00"},
		{1.3, "+1.30"},
		{-2.05, "-2.05"},
	}
	for _, tc := range tests {
		if got := format.FmtLogOdds(tc.in); got != tc.want {
			t.Errorf("FmtLogOdds(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFmtRatio(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0%"},
		{0.42, "42%"},
		{1, "100%"},
	}
	for _, tc := range tests {
		if got := format.FmtRatio(tc.in); got != tc.want {
			t.Errorf("FmtRatio(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
	}
	for _, tc := range tests {
		if got := format.FmtDuration(tc.in); got != tc.want {
			t.Errorf("FmtDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abcdef", 3, "abc"},
	}
	for _, tc := range tests {
		if got := format.Truncate(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}
