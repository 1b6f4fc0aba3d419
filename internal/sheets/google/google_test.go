package google

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"expenses/internal/core"
)

// fakeSheet keeps a single tab in memory and understands the ranges the
// mirror sends.
type fakeSheet struct {
	rows    [][]any
	reads   int
	failErr error
}

var a1Rows = regexp.MustCompile(`!A(\d+):E(\d+)$`)

func (f *fakeSheet) ReadRange(_ context.Context, rng string) ([][]any, error) {
	f.reads++
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make([][]any, len(f.rows))
	for i, r := range f.rows {
		if strings.HasSuffix(rng, "!A:A") && len(r) > 0 {
			out[i] = []any{r[0]}
		} else {
			out[i] = append([]any(nil), r...)
		}
	}
	return out, nil
}

func (f *fakeSheet) UpdateRange(_ context.Context, rng string, rows [][]any) error {
	m := a1Rows.FindStringSubmatch(rng)
	if m == nil {
		return fmt.Errorf("unexpected range %q", rng)
	}
	start, _ := strconv.Atoi(m[1])
	for i, r := range rows {
		idx := start - 1 + i
		for len(f.rows) <= idx {
			f.rows = append(f.rows, nil)
		}
		f.rows[idx] = r
	}
	return nil
}

func (f *fakeSheet) AppendRows(_ context.Context, _ string, rows [][]any) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeSheet) ClearRange(context.Context, string) error {
	f.rows = nil
	return nil
}

func (f *fakeSheet) DeleteRow(_ context.Context, _ string, row int) error {
	f.rows = append(f.rows[:row-1], f.rows[row:]...)
	return nil
}

func sample() []core.Expense {
	return []core.Expense{
		{ID: "1", Amount: core.MustMoney("25.5"), Category: "Food", Description: "Lunch", Date: core.MustDate("2023-04-10")},
		{ID: "2", Amount: core.MustMoney("60"), Category: "Transportation", Description: "Gas", Date: core.MustDate("2023-04-11")},
	}
}

func TestUpsertAppendsWithHeader(t *testing.T) {
	sheet := &fakeSheet{}
	m := newMirror(sheet, "Expenses")

	row, err := m.Upsert(context.Background(), sample()[0])
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if row != 2 {
		t.Errorf("row = %d, want 2", row)
	}
	if len(sheet.rows) != 2 || sheet.rows[0][0] != "ID" {
		t.Fatalf("rows = %v", sheet.rows)
	}

	row, err = m.Upsert(context.Background(), sample()[1])
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if row != 3 {
		t.Errorf("row = %d, want 3", row)
	}
}

func TestUpsertOverwritesExistingRow(t *testing.T) {
	sheet := &fakeSheet{}
	m := newMirror(sheet, "Expenses")
	ctx := context.Background()
	for _, e := range sample() {
		if _, err := m.Upsert(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	changed := sample()[0]
	changed.Description = "Dinner"
	row, err := m.Upsert(ctx, changed)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if row != 2 {
		t.Errorf("row = %d, want 2", row)
	}
	if len(sheet.rows) != 3 {
		t.Fatalf("expected no new row, got %d rows", len(sheet.rows))
	}
	if sheet.rows[1][3] != "Dinner" {
		t.Errorf("row not overwritten: %v", sheet.rows[1])
	}
}

func TestRemove(t *testing.T) {
	sheet := &fakeSheet{}
	m := newMirror(sheet, "Expenses")
	ctx := context.Background()
	if err := m.Replace(ctx, sample()); err != nil {
		t.Fatal(err)
	}

	removed, err := m.Remove(ctx, "1")
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	got, err := m.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("remaining = %+v", got)
	}

	removed, err = m.Remove(ctx, "1")
	if err != nil || removed {
		t.Errorf("second remove = %v, %v", removed, err)
	}
}

func TestReplaceAndReadAllRoundTrip(t *testing.T) {
	m := newMirror(&fakeSheet{rows: [][]any{{"stale"}}}, "")
	ctx := context.Background()

	if m.Sheet() != "Expenses" {
		t.Errorf("default sheet = %q", m.Sheet())
	}
	if err := m.Replace(ctx, sample()); err != nil {
		t.Fatal(err)
	}
	got, err := m.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(got, sample()) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestReadFailureIsWrapped(t *testing.T) {
	boom := errors.New("quota exceeded")
	m := newMirror(&fakeSheet{failErr: boom}, "Expenses")

	if _, err := m.Upsert(context.Background(), sample()[0]); !errors.Is(err, boom) {
		t.Errorf("upsert error = %v", err)
	}
	if _, err := m.Remove(context.Background(), "1"); !errors.Is(err, boom) {
		t.Errorf("remove error = %v", err)
	}
}

func TestParseRowsSkipsJunk(t *testing.T) {
	values := [][]any{
		{"ID", "Date", "Category", "Description", "Amount"},
		{"1", "2023-04-10", "Food", "Lunch", 25.5},
		{},
		{"2", "not a date", "Food", "x", 1},
		{"3", "2023-04-12", "Other", "Gift", "abc"},
		{"4", "2023-04-13", "Other", "Gift", "12,50"},
		{"5", "2023-04-13"},
	}
	got := parseRows(values)
	if len(got) != 2 {
		t.Fatalf("parsed %d rows, want 2: %+v", len(got), got)
	}
	if got[0].ID != "1" || !got[0].Amount.Equal(core.MustMoney("25.5")) {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].ID != "4" || !got[1].Amount.Equal(core.MustMoney("12.5")) {
		t.Errorf("second = %+v", got[1])
	}
}

func TestQuoteSheet(t *testing.T) {
	tests := map[string]string{
		"Expenses":    "'Expenses'",
		"2024 Spese":  "'2024 Spese'",
		"Bob's sheet": "'Bob''s sheet'",
	}
	for in, want := range tests {
		if got := quoteSheet(in); got != want {
			t.Errorf("quoteSheet(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error")
	}
	_, err := New(context.Background(), Options{SpreadsheetID: "x"})
	if err == nil {
		t.Fatal("expected missing credentials error")
	}
}
