package analytics

import (
	"sort"
	"strings"

	"expenses/internal/core"
)

// ListFilter narrows the expense list view.
type ListFilter struct {
	// Search matches description or category, case-insensitively.
	Search string
	// Category keeps only this exact label when non-empty.
	Category string
}

// Filter returns the matching expenses, most recent first. Expenses on the
// same date keep their relative order. The input is not modified.
func Filter(expenses []core.Expense, f ListFilter) []core.Expense {
	needle := strings.ToLower(f.Search)
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.Description), needle) &&
			!strings.Contains(strings.ToLower(e.Category), needle) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out
}

// Categories lists the distinct labels present, sorted.
func Categories(expenses []core.Expense) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range expenses {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	sort.Strings(out)
	return out
}
