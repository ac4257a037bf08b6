package client

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/logsage/internal/domain"
)

// LogsCmd groups the log store commands.
func LogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and manage stored log records",
	}
	cmd.AddCommand(logsListCmd(), logsGetCmd(), logsDeleteCmd())
	return cmd
}

func logsListCmd() *cobra.Command {
	var filter domain.LogFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent log records",
		Long: `Lists the most recent log records, oldest first.

Examples:
  logsage logs list
  logsage logs list --level ERROR --app checkout -n 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			records, err := api.ListLogs(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), records)
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Level, "level", "", "Filter by level (case-insensitive)")
	cmd.Flags().StringVar(&filter.App, "app", "", "Filter by application")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 100, "Maximum number of records")
	return cmd
}

func printRecords(w io.Writer, records []domain.LogRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No log records found.")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %-5s  %s  %s\n",
			rec.ReceivedAt.Format(time.RFC3339), rec.Level, rec.ID, truncate(rec.Message, 80))
	}
	fmt.Fprintf(w, "\n%d records\n", len(records))
}

func logsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one log record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			rec, err := api.GetLog(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get log: %w", err)
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), rec)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "ID:       %s\n", rec.ID)
			fmt.Fprintf(w, "Level:    %s\n", rec.Level)
			fmt.Fprintf(w, "Received: %s\n", rec.ReceivedAt.Format(time.RFC3339))
			if rec.App != "" {
				fmt.Fprintf(w, "App:      %s\n", rec.App)
			}
			if rec.URL != "" {
				fmt.Fprintf(w, "URL:      %s\n", rec.URL)
			}
			fmt.Fprintf(w, "Message:  %s\n", rec.Message)
			if len(rec.Data) > 0 {
				fmt.Fprintf(w, "Data:     %s\n", string(rec.Data))
			}
			return nil
		},
	}
}

func logsDeleteCmd() *cobra.Command {
	var (
		all   bool
		level string
	)

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete log records",
		Long: `Deletes one record by ID, or every record matching --level, or everything with --all.

Examples:
  logsage logs delete 7f0c...
  logsage logs delete --level DEBUG
  logsage logs delete --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all || level != "" {
				if len(args) != 0 {
					return fmt.Errorf("an ID cannot be combined with --all or --level")
				}
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("requires exactly 1 argument (log id), --level or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			deleted := 1
			if len(args) == 1 {
				err = api.DeleteLog(cmd.Context(), args[0])
			} else {
				deleted, err = api.DeleteLogs(cmd.Context(), level)
			}
			if err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}

			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]int{"deleted": deleted})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d record(s).\n", deleted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every record")
	cmd.Flags().StringVar(&level, "level", "", "Delete every record of this level")
	return cmd
}
