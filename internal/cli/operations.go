package cli

import (
	"fmt"

	"github.com/raphaelgruber/nutristat/internal/models"
	"github.com/spf13/cobra"
)

var operationsCmd = &cobra.Command{
	Use:   "operations",
	Short: "List the supported operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, op := range models.Operations() {
			form := "--question"
			if op.Scoped() {
				form = "--question --state"
			}
			fmt.Fprintf(out, "%-24s %s\n", op, form)
		}
		return nil
	},
}
