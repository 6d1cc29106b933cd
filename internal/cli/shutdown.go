package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop the server's workers",
	Long: `Ask the server to stop accepting work. Jobs already executing finish;
jobs still queued are abandoned and stay running. The server keeps
answering status queries afterwards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Server stopped accepting jobs")
		return nil
	},
}
