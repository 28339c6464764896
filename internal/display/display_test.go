package display

import "testing"

func TestClassification(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"FULL_SUCCESS", "Full Success"},
		{"PARTIAL_SUCCESS", "Partial Success"},
		{"SOFT_BLOCK", "Soft Block"},
		{"HARD_BLOCK", "Hard Block"},
		{"INCONCLUSIVE", "Inconclusive"},
		{"unknown", "unknown"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Classification(tc.code); got != tc.want {
			t.Errorf("Classification(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestClassificationWithCode(t *testing.T) {
	if got := ClassificationWithCode("SOFT_BLOCK"); got != "Soft Block (SOFT_BLOCK)" {
		t.Errorf("got %q", got)
	}
	if got := ClassificationWithCode("unknown"); got != "unknown" {
		t.Errorf("got %q", got)
	}
}

func TestUIState(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"GENERATED", "Generated"},
		{"BLOCKED", "Blocked"},
		{"ERRORED", "Errored"},
		{"TIMED_OUT", "Timed Out"},
		{"unknown", "unknown"},
	}
	for _, tc := range cases {
		if got := UIState(tc.code); got != tc.want {
			t.Errorf("UIState(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestEvidenceState(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"OPEN", "Open"},
		{"ACCEPTED", "Accepted"},
		{"REJECTED", "Rejected"},
		{"unknown", "unknown"},
	}
	for _, tc := range cases {
		if got := EvidenceState(tc.code); got != tc.want {
			t.Errorf("EvidenceState(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestContentMatch(t *testing.T) {
	if got := ContentMatch("PARTIAL"); got != "Partial Match" {
		t.Errorf("got %q", got)
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"RATE_LIMITED", "Rate Limited"},
		{"EXHAUSTED_RETRIES", "Exhausted Retries"},
		{"INVALIDATION", "Evidence Invalidated"},
		{"unknown", "unknown"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.code); got != tc.want {
			t.Errorf("ErrorKind(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestStatePath(t *testing.T) {
	got := StatePath([]string{"OPEN", "REJECTED", "OPEN"})
	want := "Open -> Rejected -> Open"
	if got != want {
		t.Errorf("StatePath = %q, want %q", got, want)
	}
}
