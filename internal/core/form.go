package core

import (
	"sort"
	"strings"
)

// FormErrors maps a form field to the message shown next to it.
type FormErrors map[string]string

func (f FormErrors) Error() string {
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, k := range fields {
		msgs = append(msgs, k+": "+f[k])
	}
	return strings.Join(msgs, "; ")
}

// ValidateForm applies the entry form rules, which are stricter than the
// store's: the amount must be positive, the category must come from the
// fixed list and the description must not be blank.
func ValidateForm(in ExpenseInput) error {
	errs := FormErrors{}
	if !in.Amount.IsPositive() {
		errs["amount"] = "Amount must be greater than zero"
	}
	switch {
	case in.Category == "":
		errs["category"] = "Category is required"
	case !IsKnownCategory(in.Category):
		errs["category"] = "Category must be one of: " + strings.Join(Categories, ", ")
	}
	if strings.TrimSpace(in.Description) == "" {
		errs["description"] = "Description is required"
	}
	if in.Date.IsZero() {
		errs["date"] = "Date is required"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
