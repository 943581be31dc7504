package app

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve analyses to an assistant over MCP (stdio)",
	Long: `Start a Model Context Protocol stdio server that an AI assistant can
query while helping you study. The server exposes these tools:

  get_metrics          Performance metrics and composite score
  get_trends           Per-interval trends and learning velocity
  get_weaknesses       Ranked weaknesses (detailed adds breakdowns and plans)
  get_recommendations  Ranked study recommendations
  get_learning_path    Adaptive multi-week study plan
  get_latest_summary   Most recent background summary
  record_assessment    Log a completed assessment

Every analysis tool accepts an optional timeframe (default weekly) and subject.
Logs go to stderr; stdout carries only protocol messages.

Example MCP configuration:
  {"mcpServers":{"examwatch":{"command":"examwatch","args":["mcp"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.engine.Start(ctx); err != nil {
		return err
	}
	rt.log.Info("mcp server starting", "version", appVersion)

	srv := mcp.NewServer(rt.engine, appVersion, rt.log)
	return srv.Run(ctx, os.Stdin, os.Stdout)
}
