package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"expenses/internal/core"
)

// expenseFlags are the editable fields as typed on the command line.
type expenseFlags struct {
	amount      string
	category    string
	description string
	date        string
}

func (f *expenseFlags) register(cmd *cobra.Command, defaultDate string) {
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in dollars, e.g. 12.50")
	cmd.Flags().StringVar(&f.category, "category", "", "one of: "+strings.Join(core.Categories, ", "))
	cmd.Flags().StringVar(&f.description, "description", "", "what the money went on")
	cmd.Flags().StringVar(&f.date, "date", defaultDate, "date as YYYY-MM-DD")
}

// apply overwrites base with every flag the user set.
func (f *expenseFlags) apply(cmd *cobra.Command, base core.ExpenseInput) (core.ExpenseInput, error) {
	in := base
	if cmd.Flags().Changed("amount") {
		m, err := core.ParseAmount(f.amount)
		if err != nil {
			return in, fmt.Errorf("amount %q: %w", f.amount, err)
		}
		in.Amount = m
	}
	if cmd.Flags().Changed("category") {
		in.Category = f.category
	}
	if cmd.Flags().Changed("description") {
		in.Description = f.description
	}
	if cmd.Flags().Changed("date") || in.Date.IsZero() {
		if f.date != "" {
			d, err := core.ParseDate(f.date)
			if err != nil {
				return in, fmt.Errorf("date %q: %w", f.date, err)
			}
			in.Date = d
		}
	}
	if err := core.ValidateForm(in); err != nil {
		return in, err
	}
	return in, nil
}

func newAddCommand(s *session) *cobra.Command {
	var f expenseFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.apply(cmd, core.ExpenseInput{})
			if err != nil {
				return err
			}
			created, err := s.replica.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added expense %s (%s, %s)\n", created.ID, created.Category, core.FormatUSD(created.Amount))
			return nil
		},
	}
	f.register(cmd, time.Now().Format(core.DateLayout))
	return cmd
}

func newEditCommand(s *session) *cobra.Command {
	var f expenseFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an existing expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := s.replica.Load(cmd.Context()); err != nil {
				return fmt.Errorf("loading expenses: %w", err)
			}
			current, ok := find(s.replica.Snapshot(), id)
			if !ok {
				return fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
			}
			in, err := f.apply(cmd, current.Input())
			if err != nil {
				return err
			}
			updated, err := s.replica.Update(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated expense %s (%s, %s)\n", updated.ID, updated.Category, core.FormatUSD(updated.Amount))
			return nil
		},
	}
	f.register(cmd, "")
	return cmd
}

func newRemoveCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an expense",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := s.replica.Load(cmd.Context()); err != nil {
				return fmt.Errorf("loading expenses: %w", err)
			}
			if err := s.replica.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense %s\n", id)
			return nil
		},
	}
}

func find(items []core.Expense, id string) (core.Expense, bool) {
	for _, e := range items {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}
