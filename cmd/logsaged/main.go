package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/logsage/internal/cli"
	"github.com/cloo-solutions/logsage/internal/cli/admin"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "logsaged",
		Short:   "Logsage daemon",
		Long:    "Logsage daemon: serves the log store and analyzes new ERROR records as they arrive",
		Version: version,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.WatchCmd())

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}
	rootCmd.SetArgs(args)

	if handled, err := cli.HandleHelpJSON(rootCmd, args); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
