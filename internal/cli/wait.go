package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/raphaelgruber/nutristat/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var waitTimeout time.Duration

var waitCmd = &cobra.Command{
	Use:   "wait [job-id...]",
	Short: "Wait until jobs are done",
	Long: `Wait until the given jobs have results. Without arguments, waits for
every job that is currently running.

On a terminal a progress bar is shown; otherwise progress is printed as
plain lines. A job whose computation failed never completes, so use
--timeout when that is possible.

Examples:
  nutristat wait job_id_3 job_id_4
  nutristat wait --timeout 30s`,
	RunE: runWait,
}

func init() {
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "give up after this long (0 waits forever)")
}

// jobPoller is the part of the API client the wait loop needs.
type jobPoller interface {
	GetResult(ctx context.Context, jobID string) (*client.JobResult, error)
}

func runWait(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, waitTimeout)
		defer cancel()
	}

	ids := args
	if len(ids) == 0 {
		jobs, err := apiClient.ListJobs(ctx)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		for _, j := range jobs {
			if j.Status != "done" {
				ids = append(ids, j.ID.String())
			}
		}
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No running jobs")
		return nil
	}

	_, err := waitForJobs(ctx, ids)
	return err
}

// waitForJobs blocks until every job is done. It reports false when the
// user stopped waiting from the interactive UI.
func waitForJobs(ctx context.Context, ids []string) (bool, error) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return RunJobProgress(ctx, apiClient, ids)
	}
	if err := waitPlain(ctx, apiClient, ids, pollInterval, os.Stderr); err != nil {
		return false, err
	}
	return true, nil
}

// waitPlain polls until no job is pending, printing a line whenever the
// done count changes.
func waitPlain(ctx context.Context, p jobPoller, ids []string, interval time.Duration, w io.Writer) error {
	total := len(ids)
	pending := ids
	last := -1

	for {
		var err error
		pending, err = pollPending(ctx, p, pending)
		if err != nil {
			return err
		}

		if done := total - len(pending); done != last {
			fmt.Fprintf(w, "%d/%d jobs done\n", done, total)
			last = done
		}
		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for jobs: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

// pollPending fetches each job once and returns those still without a result.
func pollPending(ctx context.Context, p jobPoller, ids []string) ([]string, error) {
	var pending []string
	for _, id := range ids {
		res, err := p.GetResult(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", id, err)
		}
		if !res.Done() {
			pending = append(pending, id)
		}
	}
	return pending, nil
}
