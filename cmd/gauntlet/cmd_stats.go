package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"gauntlet/internal/display"
	"gauntlet/internal/format"
	"gauntlet/internal/store"
	"gauntlet/internal/trial"
)

var statsFlags struct {
	output string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over the trial log",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFlags.output, "output", "table", "Output format: table, markdown, csv")
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mode, ok := format.ParseMode(statsFlags.output)
	if !ok {
		return fmt.Errorf("unknown output format %q", statsFlags.output)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if stats.Total == 0 {
		fmt.Fprintln(out, "Trial log is empty.")
		return nil
	}

	classes := format.NewTable(mode)
	classes.Header("Classification", "Count")
	for _, c := range trial.Classifications() {
		if n := stats.ByClassification[c]; n > 0 {
			classes.Row(display.Classification(string(c)), n)
		}
	}
	classes.Footer("TOTAL", stats.Total)
	fmt.Fprintln(out, classes.String())

	if len(stats.ByCategory) > 1 || stats.ByCategory[""] == 0 {
		cats := format.NewTable(mode)
		cats.Header("Category", "Count")
		for _, name := range sortedCategories(stats.ByCategory) {
			label := name
			if label == "" {
				label = "(uncategorized)"
			}
			cats.Row(label, stats.ByCategory[name])
		}
		fmt.Fprintln(out, cats.String())
	}

	fmt.Fprintf(out, "Average blur ratio: %s\n\n", format.FmtRatio(stats.AvgBlurRatio))

	subjects := format.NewTable(mode)
	subjects.Header("Subject", "Trials", "Log Odds", "State", "Last Trial")
	states := make(map[string]int)
	for _, s := range stats.Subjects {
		states[string(s.LastState)]++
		subjects.Row(s.SubjectID, s.Trials,
			format.FmtLogOdds(s.LastLogOdds),
			display.EvidenceState(string(s.LastState)),
			s.LastTimestamp.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out, subjects.String())

	var parts []string
	for _, st := range []string{"OPEN", "ACCEPTED", "REJECTED"} {
		if n := states[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, display.EvidenceState(st)))
		}
	}
	fmt.Fprintf(out, "Subjects: %s\n", strings.Join(parts, ", "))
	return nil
}

// sortedCategories returns category keys in lexical order.
func sortedCategories(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
