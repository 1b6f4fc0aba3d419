package analytics

import "expenses/internal/core"

// Summary bundles every dashboard view of one expense list.
type Summary struct {
	Count          int             `json:"count"`
	Total          core.Money      `json:"total"`
	FormattedTotal string          `json:"formattedTotal"`
	Categories     []CategoryTotal `json:"categories"`
	Months         []MonthlyTotal  `json:"months"`
	CategoryChart  Chart           `json:"categoryChart"`
	MonthlyChart   Chart           `json:"monthlyChart"`
}

// Summarize computes the dashboard from scratch.
func Summarize(expenses []core.Expense) Summary {
	total := Total(expenses)
	return Summary{
		Count:          len(expenses),
		Total:          total,
		FormattedTotal: core.FormatUSD(total),
		Categories:     CategoryTotals(expenses),
		Months:         MonthlyTotals(expenses),
		CategoryChart:  CategoryChart(expenses),
		MonthlyChart:   MonthlyChart(expenses),
	}
}
