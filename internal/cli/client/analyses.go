package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/logsage/internal/domain"
)

// AnalysesCmd groups the stored analysis commands.
func AnalysesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyses",
		Short: "Browse stored error analyses",
	}
	cmd.AddCommand(analysesListCmd(), analysesGetCmd())
	return cmd
}

func analysesListCmd() *cobra.Command {
	var q AnalysisQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			page, err := api.ListAnalyses(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), page)
			}

			w := cmd.OutOrStdout()
			if len(page.Items) == 0 {
				fmt.Fprintln(w, "No analyses found.")
				return nil
			}
			for i, a := range page.Items {
				fmt.Fprintf(w, "%d. [%s] %s\n", i+1, a.RiskLevel, truncate(a.Message, 70))
				fmt.Fprintf(w, "   Log: %s  Status: %s  At: %s\n", a.LogID, a.Status, a.CreatedAt.Format(time.RFC3339))
				if a.Issue != "" {
					fmt.Fprintf(w, "   Issue: %s\n", truncate(a.Issue, 70))
				}
			}
			if page.HasMore && page.Cursor != "" {
				fmt.Fprintf(w, "\n%s\nMore results available. Use --cursor %s\n", separator(), page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&q.RiskLevel, "risk", "", "Filter by risk level (LOW|MEDIUM|HIGH|CRITICAL|UNKNOWN)")
	cmd.Flags().StringVar(&q.Status, "status", "", "Filter by status (OK|PROVIDER_ERROR)")
	cmd.Flags().StringVar(&q.Cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 20, "Maximum number of results")
	return cmd
}

func analysesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <log-id>",
		Short: "Show the analysis of one log record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			result, err := api.GetAnalysis(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get analysis: %w", err)
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printAnalysis(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func printAnalysis(w io.Writer, a *domain.AnalysisResult) {
	if a.LogID != "" {
		fmt.Fprintf(w, "Log:     %s\n", a.LogID)
	}
	fmt.Fprintf(w, "Message: %s\n", a.Message)
	fmt.Fprintf(w, "Risk:    %s\n", a.RiskLevel)
	fmt.Fprintf(w, "Status:  %s\n", a.Status)

	if !a.OK() {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(a.RawText))
		return
	}
	if a.Issue == "" && a.PossibleReason == "" && a.RecommendedFix == "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(a.RawText))
		return
	}
	fmt.Fprintln(w, separator())
	if a.Issue != "" {
		fmt.Fprintf(w, "Issue:  %s\n", a.Issue)
	}
	if a.PossibleReason != "" {
		fmt.Fprintf(w, "Reason: %s\n", a.PossibleReason)
	}
	if a.RecommendedFix != "" {
		fmt.Fprintf(w, "Fix:    %s\n", a.RecommendedFix)
	}
}
