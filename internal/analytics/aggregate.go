// Package analytics derives the dashboard views from a list of expenses.
//
// Every function here is a pure transform of its input: the same list always
// yields the same totals, order and colors.
package analytics

import (
	"sort"
	"time"

	"expenses/internal/core"
)

// Palette holds the category colors, assigned by first-encounter index.
// Indices wrap, so the ninth distinct category shares the first one's color.
var Palette = []string{
	"#3B82F6", // blue-500
	"#10B981", // emerald-500
	"#F59E0B", // amber-500
	"#EF4444", // red-500
	"#8B5CF6", // violet-500
	"#EC4899", // pink-500
	"#06B6D4", // cyan-500
	"#F97316", // orange-500
}

// MonthLabelLayout renders a month key for display, e.g. "Apr 2023".
const MonthLabelLayout = "Jan 2006"

type (
	// CategoryTotal is the summed amount of one category label.
	CategoryTotal struct {
		Category string     `json:"category"`
		Total    core.Money `json:"total"`
		Color    string     `json:"color"`
	}

	// MonthlyTotal is the summed amount of one calendar month.
	MonthlyTotal struct {
		Month string     `json:"month"`
		Total core.Money `json:"total"`
	}
)

// CategoryTotals groups expenses by exact category label and sums each
// group. Entries come out in first-encounter order.
func CategoryTotals(expenses []core.Expense) []CategoryTotal {
	out := make([]CategoryTotal, 0)
	index := make(map[string]int)
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryTotal{
				Category: e.Category,
				Color:    Palette[i%len(Palette)],
			})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
	}
	return out
}

// MonthlyTotals sums expenses per calendar month, ordered chronologically.
// Sorting uses the YYYY-MM key; the display label never takes part in it.
func MonthlyTotals(expenses []core.Expense) []MonthlyTotal {
	sums := make(map[string]core.Money)
	keys := make([]string, 0)
	for _, e := range expenses {
		key := e.Date.MonthKey()
		if _, ok := sums[key]; !ok {
			keys = append(keys, key)
		}
		sums[key] = sums[key].Add(e.Amount)
	}
	sort.Strings(keys)

	out := make([]MonthlyTotal, 0, len(keys))
	for _, key := range keys {
		out = append(out, MonthlyTotal{
			Month: monthLabel(key),
			Total: sums[key],
		})
	}
	return out
}

// Total sums every amount.
func Total(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func monthLabel(key string) string {
	t, err := time.Parse(core.MonthKeyLayout, key)
	if err != nil {
		// keys are produced by Date.MonthKey and always parse
		return key
	}
	return t.Format(MonthLabelLayout)
}
