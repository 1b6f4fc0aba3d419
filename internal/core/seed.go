package core

// Categories is the fixed label set offered by the expense form.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Housing",
	"Entertainment",
	"Utilities",
	"Healthcare",
	"Shopping",
	"Travel",
	"Education",
	"Other",
}

// IsKnownCategory reports whether c is one of Categories.
func IsKnownCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// SampleExpenses returns the records a fresh store starts with.
func SampleExpenses() []Expense {
	return []Expense{
		{ID: "1", Amount: MustMoney("45.99"), Category: "Food & Dining", Description: "Grocery shopping", Date: MustDate("2023-04-15")},
		{ID: "2", Amount: MustMoney("12.50"), Category: "Transportation", Description: "Bus fare", Date: MustDate("2023-04-12")},
		{ID: "3", Amount: MustMoney("89.99"), Category: "Entertainment", Description: "Concert tickets", Date: MustDate("2023-04-05")},
		{ID: "4", Amount: MustMoney("150"), Category: "Housing", Description: "Electricity bill", Date: MustDate("2023-04-02")},
		{ID: "5", Amount: MustMoney("35.75"), Category: "Healthcare", Description: "Pharmacy", Date: MustDate("2023-03-28")},
	}
}
