package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of an expense date.
const DateLayout = "2006-01-02"

// MonthKeyLayout identifies a calendar month; it sorts chronologically.
const MonthKeyLayout = "2006-01"

type (
	Date struct {
		time.Time
	}

	Expense struct {
		ID          string `json:"id"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
	}

	// ExpenseInput carries every field of an expense except the identifier.
	// Create and update both take the full set; nothing is merged.
	ExpenseInput struct {
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
	}

	// ExpensePayload is the raw request body of a create or update call.
	// Amount is kept raw so that numbers and numeric strings are both accepted.
	ExpensePayload struct {
		Amount      json.RawMessage `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Date        string          `json:"date"`
	}
)

var (
	ErrNotFound      = errors.New("expense not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// ValidationError reports absent and malformed fields of an expense payload.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return strings.Join(parts, "; ")
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM bucket the date falls in.
func (d Date) MonthKey() string {
	return d.Format(MonthKeyLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Input returns the replaceable fields of the expense.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
	}
}

// WithID builds the stored record for the given identifier.
func (in ExpenseInput) WithID(id string) Expense {
	return Expense{
		ID:          id,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
	}
}

// Validate applies the store's presence rule: every field must be present
// and truthy. A zero amount counts as absent; the sign is not checked.
func (in ExpenseInput) Validate() error {
	var missing []string
	if in.Amount.IsZero() {
		missing = append(missing, "amount")
	}
	if in.Category == "" {
		missing = append(missing, "category")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if in.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// quotedAmount reports whether raw is a non-empty JSON string. Such an
// amount counts as present even when it parses to zero.
func quotedAmount(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil && s != ""
}

// Input converts a request body into an ExpenseInput, coercing the amount
// to a number. Absent fields and unparseable values are reported together.
func (p ExpensePayload) Input() (ExpenseInput, error) {
	var (
		in ExpenseInput
		ve ValidationError
	)

	amount, err := ParseAmountJSON(p.Amount)
	switch {
	case err != nil:
		ve.Invalid = append(ve.Invalid, "amount")
	case amount.IsZero() && !quotedAmount(p.Amount):
		ve.Missing = append(ve.Missing, "amount")
	default:
		in.Amount = amount
	}

	if p.Category == "" {
		ve.Missing = append(ve.Missing, "category")
	}
	in.Category = p.Category

	if p.Description == "" {
		ve.Missing = append(ve.Missing, "description")
	}
	in.Description = p.Description

	if p.Date == "" {
		ve.Missing = append(ve.Missing, "date")
	} else if d, err := ParseDate(p.Date); err != nil {
		ve.Invalid = append(ve.Invalid, "date")
	} else {
		in.Date = d
	}

	if len(ve.Missing) > 0 || len(ve.Invalid) > 0 {
		return ExpenseInput{}, &ve
	}
	return in, nil
}
