// Package cli provides the command-line interface for nutristat.
package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/nutristat/internal/client"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// API client, created before any subcommand runs
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nutristat",
	Short: "Client for the nutristat survey statistics server",
	Long: `nutristat submits statistics jobs over the nutrition and physical activity
survey dataset to a nutristat server and fetches their results.

Jobs run asynchronously: submitting returns a job id right away, and the
result becomes available once a worker has computed it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip client setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		apiClient = client.New(serverURL)
		if verbose {
			fmt.Fprintf(os.Stderr, "server: %s\n", apiClient.BaseURL())
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $NUTRISTAT_SERVER_URL or http://localhost:5000)")

	// Add subcommands
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(runningCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(operationsCmd)
	rootCmd.AddCommand(shutdownCmd)
}
