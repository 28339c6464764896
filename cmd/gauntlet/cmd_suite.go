package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gauntlet/internal/config"
	"gauntlet/internal/display"
	"gauntlet/internal/format"
	"gauntlet/internal/orchestrate"
	"gauntlet/internal/trial"
)

var suiteFlags struct {
	plan    string
	workers int
	output  string
}

var suiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Run a trial plan: many cases across subjects, parallel lanes per subject",
	RunE:  runSuite,
}

func init() {
	f := suiteCmd.Flags()
	f.StringVar(&suiteFlags.plan, "plan", "", "Path to plan file (YAML, JSON, or CSV) (required)")
	f.IntVar(&suiteFlags.workers, "workers", 0, "Parallel subject lanes (0 = from config)")
	f.StringVar(&suiteFlags.output, "output", "table", "Summary format: table, markdown, csv")

	_ = suiteCmd.MarkFlagRequired("plan")
}

func runSuite(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	plan, err := loadPlanFile(suiteFlags.plan)
	if err != nil {
		return err
	}
	cases := plan.SuiteCases()
	if len(cases) == 0 {
		return fmt.Errorf("plan %q has no cases", plan.Name)
	}

	mode, ok := format.ParseMode(suiteFlags.output)
	if !ok {
		return fmt.Errorf("unknown output format %q", suiteFlags.output)
	}

	workers := suiteFlags.workers
	if workers <= 0 {
		workers = cfg.Suite.Workers
	}

	h, err := buildHarness(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	results, suiteErr := h.orch.RunSuite(cmd.Context(), cases, workers)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	fmt.Fprintf(out, "Plan %q: %d case(s), %d failed\n\n", plan.Name, len(results), failed)

	tb := format.NewTable(mode)
	tb.Header("Subject", "Trials", "Log Odds", "State")
	for _, subjectID := range subjectOrder(cases) {
		snap := h.acc.Snapshot(subjectID)
		tb.Row(subjectID, snap.TrialCount,
			format.FmtLogOdds(snap.LogOdds),
			display.EvidenceState(string(snap.State)))
	}
	fmt.Fprintln(out, tb.String())

	printExpectations(out, mode, plan.ExpectedOutcomes(), results)

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(out, "case %s %q: %v\n", r.Case.SubjectID, format.Truncate(r.Case.Input.Prompt, 40), r.Err)
		}
	}
	return suiteErr
}

// loadPlanFile reads a plan in any supported format; CSV plans take their
// name from the file.
func loadPlanFile(path string) (*config.Plan, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open plan: %w", err)
		}
		defer f.Close()
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return config.ImportPlanCSV(f, name)
	}
	return config.LoadPlan(path)
}

// printExpectations renders the expected-vs-actual table for cases that
// declared an expectation.
func printExpectations(out io.Writer, mode format.Mode, expected []trial.Classification, results []orchestrate.CaseResult) {
	if len(expected) != len(results) {
		return
	}
	matched, total := 0, 0
	tb := format.NewTable(mode)
	tb.Header("Subject", "Prompt", "Expected", "Actual", "")
	for i, r := range results {
		if expected[i] == "" {
			continue
		}
		total++
		actual := trial.Classification("")
		if r.Result != nil && r.Result.Record != nil {
			actual = r.Result.Record.Classification
		}
		ok := actual == expected[i]
		if ok {
			matched++
		}
		tb.Row(r.Case.SubjectID, format.Truncate(r.Case.Input.Prompt, 40),
			display.Classification(string(expected[i])),
			display.Classification(string(actual)),
			format.BoolMark(ok))
	}
	if total == 0 {
		return
	}
	fmt.Fprintf(out, "Expectations: %d/%d matched\n", matched, total)
	fmt.Fprintln(out, tb.String())
}

// subjectOrder lists distinct subjects in plan order.
func subjectOrder(cases []orchestrate.Case) []string {
	seen := make(map[string]bool)
	var order []string
	for _, c := range cases {
		if !seen[c.SubjectID] {
			seen[c.SubjectID] = true
			order = append(order, c.SubjectID)
		}
	}
	return order
}
