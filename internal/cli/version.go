package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the "version" subcommand, which prints the
// build information of the binary. It is a subcommand because -v/--version
// on the root command is the release version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ink-release build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// --json is a persistent flag of the root command.
			jsonOutput, _ := cmd.Flags().GetBool("json")
			if jsonOutput {
				data, _ := json.MarshalIndent(map[string]string{
					"version": Version,
					"commit":  Commit,
					"date":    Date,
				}, "", "  ")
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			// Text output: "ink-release 1.4.0 (commit: abc123, built: 2024-03-01)".
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ink-release %s (commit: %s, built: %s)\n", Version, Commit, Date)
			return err
		},
	}
}
