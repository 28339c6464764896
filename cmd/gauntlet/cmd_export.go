package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gauntlet/internal/store"
)

var exportFlags struct {
	out     string
	subject string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the trial log as CSV",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.out, "out", "o", "-", "Destination file (- = stdout)")
	f.StringVar(&exportFlags.subject, "subject", "", "Export only this subject's trials")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	recs, err := st.List(store.Query{SubjectID: exportFlags.subject})
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportFlags.out != "-" {
		f, err := os.Create(exportFlags.out)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := store.ExportCSV(w, recs); err != nil {
		return err
	}
	if exportFlags.out != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d record(s) to %s\n", len(recs), exportFlags.out)
	}
	return nil
}
