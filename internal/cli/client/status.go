package client

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// StatusCmd reports daemon health.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health, feed and index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			health, err := api.Health(cmd.Context())
			var apiErr *APIError
			if err != nil && !(errors.As(err, &apiErr) && health != nil) {
				return fmt.Errorf("health check failed: %w", err)
			}

			if wantsJSON(cmd) {
				if perr := printJSON(cmd.OutOrStdout(), health); perr != nil {
					return perr
				}
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Status: %s\n", health.Status)
			if health.Feed != nil {
				fmt.Fprintf(w, "Feed:   %d cycles, %d emitted, %d seen, %d consecutive failures\n",
					health.Feed.Cycles, health.Feed.Emitted, health.Feed.Seen, health.Feed.ConsecutiveFailures)
			}
			if health.Index != nil {
				fmt.Fprintf(w, "Index:  %d documents (generation %d)\n", health.Index.Documents, health.Index.Generation)
			}
			return err
		},
	}
}
