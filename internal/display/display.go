// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports, logs, and docs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import "strings"

// --- Classifications ---

var classifications = map[string]string{
	"FULL_SUCCESS":    "Full Success",
	"PARTIAL_SUCCESS": "Partial Success",
	"SOFT_BLOCK":      "Soft Block",
	"HARD_BLOCK":      "Hard Block",
	"INCONCLUSIVE":    "Inconclusive",
}

// Classification returns the human-readable name for a classification code.
// Unknown codes are returned as-is.
func Classification(code string) string {
	if name, ok := classifications[code]; ok {
		return name
	}
	return code
}

// ClassificationWithCode returns "Soft Block (SOFT_BLOCK)" format for
// dual-audience contexts.
func ClassificationWithCode(code string) string {
	if name, ok := classifications[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- UI states ---

var uiStates = map[string]string{
	"GENERATED": "Generated",
	"BLOCKED":   "Blocked",
	"ERRORED":   "Errored",
	"TIMED_OUT": "Timed Out",
}

// UIState returns the human-readable name for a settled UI state code.
func UIState(code string) string {
	if name, ok := uiStates[code]; ok {
		return name
	}
	return code
}

// --- Evidence states ---

var evidenceStates = map[string]string{
	"OPEN":     "Open",
	"ACCEPTED": "Accepted",
	"REJECTED": "Rejected",
}

// EvidenceState returns the human-readable name for an evidence state code.
func EvidenceState(code string) string {
	if name, ok := evidenceStates[code]; ok {
		return name
	}
	return code
}

// --- Content match ---

var matches = map[string]string{
	"FULL":    "Full Match",
	"PARTIAL": "Partial Match",
	"NONE":    "No Match",
}

// ContentMatch returns the human-readable name for a match level code.
func ContentMatch(code string) string {
	if name, ok := matches[code]; ok {
		return name
	}
	return code
}

// --- Orchestrator error kinds ---

var errorKinds = map[string]string{
	"RATE_LIMITED":      "Rate Limited",
	"CANCELED":          "Canceled",
	"EXHAUSTED_RETRIES": "Exhausted Retries",
	"STORE":             "Store Failure",
	"INVALIDATION":      "Evidence Invalidated",
}

// ErrorKind returns the human-readable name for an orchestrator error kind.
func ErrorKind(code string) string {
	if name, ok := errorKinds[code]; ok {
		return name
	}
	return code
}

// StatePath converts a sequence of evidence state codes to a readable path.
// ["OPEN", "REJECTED", "OPEN"] -> "Open -> Rejected -> Open"
func StatePath(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = EvidenceState(c)
	}
	return strings.Join(names, " -> ")
}
