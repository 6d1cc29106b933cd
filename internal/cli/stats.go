package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/raphaelgruber/nutristat/internal/client"
	"github.com/raphaelgruber/nutristat/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Long: `Show the server's worker pool state and per-operation timings.

Statistics are kept in memory and reset when the server restarts.

Examples:
  nutristat stats`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := apiClient.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(cmd.OutOrStdout(), stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(w io.Writer, stats *client.Stats) {
	m := stats.Metrics

	fmt.Fprintf(w, "Server Statistics (in-memory, since restart)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", m.UptimeSeconds)

	accepting := "yes"
	if !stats.Accepting {
		accepting = "no (shut down)"
	}
	fmt.Fprintf(w, "\nWorkers:\n")
	fmt.Fprintf(w, "  Size: %d, Busy: %d, Accepting: %s\n", stats.Workers, stats.Busy, accepting)
	fmt.Fprintf(w, "  Queued: %d, Next job id: %d\n", stats.Queued, stats.NextJobID)
	fmt.Fprintf(w, "  Event subscribers: %d\n", stats.Subscribers)

	fmt.Fprintf(w, "\nJobs:\n")
	fmt.Fprintf(w, "  Submitted: %d, Completed: %d, Failed: %d, Dropped: %d\n",
		m.Submitted, m.Completed, m.Failed, m.Dropped)

	for _, op := range m.Operations {
		fmt.Fprintf(w, "\n%s:\n", op.Operation)
		printOpStats(w, op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Failures: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	if op.Count > 0 {
		fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
			op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
}
