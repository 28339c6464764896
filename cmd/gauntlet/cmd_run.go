package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gauntlet/internal/display"
	"gauntlet/internal/format"
	"gauntlet/internal/trial"
)

var runFlags struct {
	subject  string
	prompt   string
	mode     string
	category string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single trial against the target application",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.subject, "subject", "", "Subject ID the trial accrues evidence for (required)")
	f.StringVar(&runFlags.prompt, "prompt", "", "Prompt to submit (required)")
	f.StringVar(&runFlags.mode, "mode", "", "Generation mode passed to the target")
	f.StringVar(&runFlags.category, "category", "", "Free-form category tag")

	_ = runCmd.MarkFlagRequired("subject")
	_ = runCmd.MarkFlagRequired("prompt")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := buildHarness(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	res, runErr := h.orch.RunTrial(cmd.Context(), runFlags.subject, trial.InputSpec{
		Prompt:   runFlags.prompt,
		Mode:     runFlags.mode,
		Category: runFlags.category,
	})
	if res == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	rec := res.Record
	fmt.Fprintf(out, "Trial:          #%d (attempts: %d)\n", rec.TrialID, res.Attempts)
	fmt.Fprintf(out, "UI state:       %s\n", display.UIState(string(rec.UIState)))
	fmt.Fprintf(out, "Classification: %s\n", display.ClassificationWithCode(string(rec.Classification)))
	if rec.Signals != nil {
		fmt.Fprintf(out, "Blur ratio:     %s\n", format.FmtRatio(rec.Signals.BlurRatio))
		fmt.Fprintf(out, "Content match:  %s\n", display.ContentMatch(string(rec.Signals.ContentMatch)))
	}
	fmt.Fprintf(out, "Evidence:       %s at %s after %d trial(s)\n",
		display.EvidenceState(string(res.Update.State)),
		format.FmtLogOdds(res.Update.LogOdds),
		res.Update.TrialCount)
	if res.Update.Invalidated {
		fmt.Fprintf(out, "Note: confident contradiction; evidence for %q was reset\n", runFlags.subject)
	}
	return runErr
}
