package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List all jobs and their status",
	Long: `List every job the server has assigned an id to, in id order.

A job stays "running" until its result is stored. Jobs whose computation
failed, or that were still queued when the server stopped its workers,
remain running indefinitely.

Examples:
  nutristat jobs`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

var runningCmd = &cobra.Command{
	Use:   "running",
	Short: "Print the number of jobs without a result",
	Args:  cobra.NoArgs,
	RunE:  runRunning,
}

func runJobs(cmd *cobra.Command, args []string) error {
	jobs, err := apiClient.ListJobs(context.Background())
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "%-14s %s\n", "ID", "STATUS")
	fmt.Fprintln(out, "-----------------------")

	running := 0
	for _, job := range jobs {
		if job.Status != "done" {
			running++
		}
		fmt.Fprintf(out, "%-14s %s\n", job.ID, job.Status)
	}

	if verbose {
		fmt.Fprintf(out, "\n%d jobs, %d running\n", len(jobs), running)
	}
	return nil
}

func runRunning(cmd *cobra.Command, args []string) error {
	n, err := apiClient.NumJobs(context.Background())
	if err != nil {
		return fmt.Errorf("count running jobs: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}
