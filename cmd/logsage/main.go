package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/logsage/internal/cli"
	"github.com/cloo-solutions/logsage/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "logsage",
		Short: "Logsage CLI - query logs and error analyses",
		Long: `Logsage CLI talks to a logsaged server: ingest and browse logs, read error
analyses and ask questions grounded on past errors.

Environment variables:
  LOGSAGE_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolP("output", "o", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.LogsCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.AnalyzeCmd())
	rootCmd.AddCommand(client.AnalysesCmd())
	rootCmd.AddCommand(client.StatusCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	if handled, err := cli.HandleHelpJSON(rootCmd, os.Args[1:]); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
