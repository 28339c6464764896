// gauntlet is the trial harness CLI: run single trials, execute suites,
// inspect the trial log, and serve it over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config    string
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "gauntlet",
	Short: "Closed-loop trial harness for generative web applications",
	Long: "Gauntlet submits prompts to a generative web app, observes how each\n" +
		"attempt settles, classifies the result, and accumulates evidence about\n" +
		"the app's moderation regime per subject.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "Path to config file (YAML or JSON)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(suiteCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
