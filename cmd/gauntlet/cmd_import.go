package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gauntlet/internal/store"
)

var importFlags struct {
	file string
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import trial records from a CSV export into the store",
	Long: "Reads a CSV produced by 'gauntlet export' and appends its rows to the\n" +
		"store. Records get fresh trial IDs; the original IDs are not preserved.",
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFlags.file, "file", "f", "", "CSV file to import (required)")
	_ = importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(importFlags.file)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	recs, err := store.ImportCSV(f)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	for i, r := range recs {
		if _, err := st.Put(r); err != nil {
			return fmt.Errorf("import row %d: %w", i+1, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d record(s)\n", len(recs))
	return nil
}
