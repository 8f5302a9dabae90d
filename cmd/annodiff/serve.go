package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/annodiff/internal/logger"
	"github.com/ironsheep/annodiff/internal/server"
	"github.com/ironsheep/annodiff/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdin/stdout",
	Long: `serve runs annodiff as an MCP (Model Context Protocol) server. Requests are
read as JSON-RPC 2.0 lines from stdin and answered on stdout. The server
exposes the dataset_diff, dataset_diff_render and diff_metrics tools.

Configure it in your MCP client (e.g., Claude Desktop) with the command
"annodiff serve".`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("config", "", "YAML config file supplying default diff settings")
	serveCmd.Flags().String("otlp-endpoint", "", "Export trace spans to this OTLP/HTTP endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	endpoint, err := cmd.Flags().GetString("otlp-endpoint")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, endpoint, GetVersion())
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer shutdown(context.Background())

	logger.Debug("annodiff MCP server starting", "version", GetVersion(), "built", BuildTime, "commit", GitCommit)

	srv := server.New(
		server.WithVersion(GetVersion()),
		server.WithConfigFile(configFile),
	)
	if err := srv.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		logger.Error("annodiff MCP server stopped", "error", err)
		return err
	}
	return nil
}
