package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"expenses/internal/core"
)

func newReportCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show totals by category and by month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.replica.Load(cmd.Context()); err != nil {
				return fmt.Errorf("loading expenses: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Total spent\t%s\n", core.FormatUSD(s.replica.Total()))

			fmt.Fprintln(tw, "\nBy category")
			for _, c := range s.replica.CategoryTotals() {
				fmt.Fprintf(tw, "  %s\t%s\n", c.Category, core.FormatUSD(c.Total))
			}

			fmt.Fprintln(tw, "\nBy month")
			for _, m := range s.replica.MonthlyTotals() {
				fmt.Fprintf(tw, "  %s\t%s\n", m.Month, core.FormatUSD(m.Total))
			}
			return tw.Flush()
		},
	}
}
