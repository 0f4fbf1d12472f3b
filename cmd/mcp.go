package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/tt/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio so an agent can
start, stop and query sessions. Configure a client with:

  {
    "mcpServers": {
      "tt": { "command": "tt", "args": ["mcp"] }
    }
  }

Available tools: tt_start, tt_stop, tt_status, tt_report`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// stdout carries the protocol, so console output moves to stderr.
	ui.Out = os.Stderr

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	return mcp.NewServer(a.ctrl, buildVersion).ServeStdio(ctx)
}
