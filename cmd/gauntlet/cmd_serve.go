package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gauntlet/internal/logging"
	mcpserver "gauntlet/internal/mcp"
	"gauntlet/internal/store"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the trial log and evidence state over MCP on stdio",
	Long: `Starts an MCP server over stdin/stdout. Agent clients connect and call
inspection tools (get_stats, list_trials, get_trial, get_evidence, export_csv)
against the live store.

The server monitors for parent process death. When the client disconnects or
restarts, the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	acc, err := rehydrate(st, cfg.Evidence)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	srv := mcpserver.NewServer(st, acc)
	logging.New("mcp").Info("starting gauntlet MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
