package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskCmd sends a free-form question to the reasoning provider.
func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your logs",
		Long: `Sends a question, grounded on the most relevant historical log lines.

Example:
  logsage ask "why do checkout requests time out after deploys?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			result, err := api.Ask(cmd.Context(), question)
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			return nil
		},
	}
}

// AnalyzeCmd runs an ad hoc analysis of one error message.
func AnalyzeCmd() *cobra.Command {
	var app string

	cmd := &cobra.Command{
		Use:   "analyze <message>",
		Short: "Analyze an error message without storing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			result, err := api.Analyze(cmd.Context(), strings.Join(args, " "), app)
			if err != nil {
				return fmt.Errorf("analyze failed: %w", err)
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printAnalysis(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "Application the message came from")
	return cmd
}
