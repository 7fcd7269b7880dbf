package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	status, err := client.Health(cmd.Context())
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(status)
	}
	fmt.Fprintf(stdout, "%s: %s (server time %s)\n", client.BaseURL(), status.Status, status.Time)
	return nil
}
