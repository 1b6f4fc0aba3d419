package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"expenses/internal/analytics"
	"expenses/internal/core"
)

func newListCommand(s *session) *cobra.Command {
	var f analytics.ListFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.replica.Load(cmd.Context()); err != nil {
				return fmt.Errorf("loading expenses: %w", err)
			}
			items := analytics.Filter(s.replica.Snapshot(), f)
			return printExpenses(cmd.OutOrStdout(), items)
		},
	}

	cmd.Flags().StringVar(&f.Search, "search", "", "match description or category")
	cmd.Flags().StringVar(&f.Category, "category", "", "only this category")

	return cmd
}

func printExpenses(w io.Writer, items []core.Expense) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No expenses found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tDESCRIPTION\tAMOUNT")
	total := core.Money{}
	for _, e := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Category, e.Description, core.FormatUSD(e.Amount))
		total = total.Add(e.Amount)
	}
	fmt.Fprintf(tw, "\t\t\tTotal\t%s\n", core.FormatUSD(total))
	return tw.Flush()
}
