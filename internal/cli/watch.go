package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/nutristat/internal/client"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream job completions as they happen",
	Long: `Connect to the server's event stream and print a line for every job
that completes. Runs until interrupted.

Examples:
  nutristat watch`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	theme := defaultTheme
	fmt.Fprintln(os.Stderr, theme.mutedStyle().Render("Watching "+apiClient.BaseURL()+" (Ctrl+C to stop)"))

	return apiClient.Watch(ctx, func(ev client.Event) error {
		_, err := fmt.Fprintf(out, "%s %s %s %s (%dms)\n",
			ev.CompletedAt.Local().Format("15:04:05"),
			theme.doneStyle().Render(ev.Status),
			ev.JobID,
			ev.Operation,
			ev.DurationMs)
		return err
	})
}
