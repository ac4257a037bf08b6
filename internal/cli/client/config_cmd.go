package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ConfigCmd manages the saved CLI settings.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI settings",
	}

	setURL := &cobra.Command{
		Use:   "set-url <url>",
		Short: "Save the default API URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ValidateAPIURL(args[0]); err != nil {
				return err
			}
			config, err := LoadGlobalConfig()
			if err != nil {
				return err
			}
			if config == nil {
				config = &GlobalConfig{}
			}
			config.APIURL = normalizeBaseURL(args[0])
			if err := SaveGlobalConfig(config); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API URL set to %s\n", config.APIURL)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective API URL and where it comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flagURL, _ := cmd.Flags().GetString("api-url")
			url, source, err := ResolveAPIURL(flagURL)
			if err != nil {
				return err
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]string{"api_url": url, "source": string(source)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API URL: %s (%s)\n", url, source)
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Remove saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings removed.")
			return nil
		},
	}

	cmd.AddCommand(setURL, show, reset)
	return cmd
}
