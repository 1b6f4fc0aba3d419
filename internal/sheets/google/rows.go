package google

import (
	"fmt"
	"strings"

	"expenses/internal/core"
)

func expenseRow(e core.Expense) []any {
	return []any{e.ID, e.Date.String(), e.Category, e.Description, e.Amount.Float64()}
}

// parseRows converts a values matrix as returned by the Sheets API back into
// expenses. A header row, blank rows and rows with an unreadable date or
// amount are skipped.
func parseRows(values [][]any) []core.Expense {
	out := make([]core.Expense, 0, len(values))
	for _, row := range values {
		cols := toStrings(row)
		if len(cols) < 5 || cols[0] == "" || strings.EqualFold(cols[0], "ID") {
			continue
		}
		date, err := core.ParseDate(cols[1])
		if err != nil {
			continue
		}
		amount, err := core.ParseAmount(cols[4])
		if err != nil {
			continue
		}
		out = append(out, core.Expense{
			ID:          cols[0],
			Date:        date,
			Category:    cols[2],
			Description: cols[3],
			Amount:      amount,
		})
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// quoteSheet quotes a tab name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Equal reports whether two expense lists hold the same records in the
// same order.
func Equal(a, b []core.Expense) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Category != y.Category || x.Description != y.Description ||
			x.Date.String() != y.Date.String() || !x.Amount.Equal(y.Amount) {
			return false
		}
	}
	return true
}
