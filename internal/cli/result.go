package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resultOutput string

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Show a job's status and result",
	Long: `Show whether a job is still running and, once done, print its result.

Job ids are accepted as printed by submit (job_id_7) or as bare numbers (7).

Examples:
  nutristat result job_id_7
  nutristat result 7 -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runResult,
}

func init() {
	resultCmd.Flags().StringVarP(&resultOutput, "output", "o", "json", "output format: json or yaml")
}

func runResult(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(resultOutput)
	if err != nil {
		return err
	}

	res, err := apiClient.GetResult(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get result: %w", err)
	}

	if !res.Done() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], res.Status)
		return nil
	}
	return writeResult(cmd.OutOrStdout(), res.Data, format)
}
