package analytics

import "expenses/internal/core"

// Chart is the labels/datasets payload consumed by the dashboard charts.
type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series of a Chart. BackgroundColor is a list for the pie
// chart and a single color for the bar chart.
type Dataset struct {
	Label           string    `json:"label,omitempty"`
	Data            []float64 `json:"data"`
	BackgroundColor any       `json:"backgroundColor"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BorderWidth     int       `json:"borderWidth"`
}

const (
	monthlyDatasetLabel = "Monthly Expenses"
	monthlyBackground   = "#3B82F6"
	monthlyBorder       = "#2563EB"
)

// CategoryChart builds the pie chart of spending by category.
func CategoryChart(expenses []core.Expense) Chart {
	totals := CategoryTotals(expenses)
	labels := make([]string, 0, len(totals))
	data := make([]float64, 0, len(totals))
	colors := make([]string, 0, len(totals))
	for _, t := range totals {
		labels = append(labels, t.Category)
		data = append(data, t.Total.Float64())
		colors = append(colors, t.Color)
	}
	return Chart{
		Labels: labels,
		Datasets: []Dataset{{
			Data:            data,
			BackgroundColor: colors,
			BorderWidth:     1,
		}},
	}
}

// MonthlyChart builds the bar chart of spending per month.
func MonthlyChart(expenses []core.Expense) Chart {
	totals := MonthlyTotals(expenses)
	labels := make([]string, 0, len(totals))
	data := make([]float64, 0, len(totals))
	for _, t := range totals {
		labels = append(labels, t.Month)
		data = append(data, t.Total.Float64())
	}
	return Chart{
		Labels: labels,
		Datasets: []Dataset{{
			Label:           monthlyDatasetLabel,
			Data:            data,
			BackgroundColor: monthlyBackground,
			BorderColor:     monthlyBorder,
			BorderWidth:     1,
		}},
	}
}
