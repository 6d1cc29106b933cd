package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/nutristat/internal/models"
	"github.com/spf13/cobra"
)

var (
	submitQuestion string
	submitState    string
	submitWait     bool
	submitOutput   string
)

var submitCmd = &cobra.Command{
	Use:   "submit <operation>",
	Short: "Submit a statistics job",
	Long: `Submit a job for one of the supported operations and print its id.

Operations that end in a state scope (state_mean, state_diff_from_mean,
state_mean_by_category) require --state; the others reject it.

Examples:
  nutristat submit global_mean -q "Percent of adults who have obesity"
  nutristat submit state_mean -q "..." -s Ohio --wait`,
	Args: cobra.ExactArgs(1),
	ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, op := range models.Operations() {
			names = append(names, string(op))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitQuestion, "question", "q", "", "survey question (required)")
	submitCmd.Flags().StringVarP(&submitState, "state", "s", "", "state to scope the operation to")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "wait for the result and print it")
	submitCmd.Flags().StringVarP(&submitOutput, "output", "o", "json", "result format with --wait: json or yaml")
	_ = submitCmd.MarkFlagRequired("question")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	op, err := models.ParseOperation(args[0])
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, operationNames())
	}
	if op.Scoped() && submitState == "" {
		return fmt.Errorf("operation %s requires --state", op)
	}
	if !op.Scoped() && submitState != "" {
		return fmt.Errorf("operation %s does not take --state", op)
	}
	format, err := parseFormat(submitOutput)
	if err != nil {
		return err
	}

	ctx := context.Background()
	jobID, err := apiClient.Submit(ctx, op, submitQuestion, submitState)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	if !submitWait {
		fmt.Fprintln(cmd.OutOrStdout(), jobID)
		return nil
	}

	done, err := waitForJobs(ctx, []string{jobID})
	if err != nil {
		return err
	}
	if !done {
		fmt.Fprintln(cmd.OutOrStdout(), jobID)
		return nil
	}
	res, err := apiClient.GetResult(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get result: %w", err)
	}
	return writeResult(cmd.OutOrStdout(), res.Data, format)
}

func operationNames() string {
	var names []string
	for _, op := range models.Operations() {
		names = append(names, string(op))
	}
	return strings.Join(names, ", ")
}
