// Package google mirrors the expense list into a Google Sheets tab.
//
// The tab holds a header row followed by one row per expense:
// ID, Date, Category, Description, Amount. Rows are located by the ID in
// column A, so the mirror tolerates rows being reordered by hand.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"expenses/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the first row of the mirror tab.
var Header = []any{"ID", "Date", "Category", "Description", "Amount"}

// sheetAPI is the subset of the Sheets API the mirror needs. Ranges use A1
// notation including the quoted tab name.
type sheetAPI interface {
	ReadRange(ctx context.Context, rng string) ([][]any, error)
	UpdateRange(ctx context.Context, rng string, rows [][]any) error
	AppendRows(ctx context.Context, rng string, rows [][]any) error
	ClearRange(ctx context.Context, rng string) error
	DeleteRow(ctx context.Context, sheet string, row int) error
}

type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Mirror keeps one sheet tab in step with the store.
type Mirror struct {
	api   sheetAPI
	sheet string
	// Row lookups and writes must not interleave: a delete shifts every
	// row below it.
	mu sync.Mutex
}

// New authenticates with a service account and returns a mirror of
// opts.SheetName.
func New(ctx context.Context, opts Options) (*Mirror, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newMirror(&serviceAPI{svc: svc, spreadsheetID: opts.SpreadsheetID}, opts.SheetName), nil
}

func newMirror(api sheetAPI, sheet string) *Mirror {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Expenses"
	}
	return &Mirror{api: api, sheet: sheet}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(opts.CredentialsJSON))
	if len(credentialsJSON) == 0 {
		if opts.CredentialsFile == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
		}
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	}

	slog.DebugContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Sheet returns the mirrored tab name.
func (m *Mirror) Sheet() string { return m.sheet }

// Upsert writes e over its existing row, or appends it when the ID is not
// in the tab yet. It returns the 1-based row written.
func (m *Mirror) Upsert(ctx context.Context, e core.Expense) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, err := m.findRow(ctx, e.ID)
	if err != nil {
		return 0, err
	}
	values := [][]any{expenseRow(e)}

	if row > 0 {
		rng := fmt.Sprintf("%s!A%d:E%d", quoteSheet(m.sheet), row, row)
		if err := m.api.UpdateRange(ctx, rng, values); err != nil {
			return 0, fmt.Errorf("update row %d: %w", row, err)
		}
		return row, nil
	}

	ids, err := m.readIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		values = append([][]any{Header}, values...)
	}
	if err := m.api.AppendRows(ctx, quoteSheet(m.sheet)+"!A:E", values); err != nil {
		return 0, fmt.Errorf("append expense %s: %w", e.ID, err)
	}
	return max(len(ids), 1) + 1, nil
}

// Remove deletes the row holding id. A missing row is not an error; it
// reports false.
func (m *Mirror) Remove(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, err := m.findRow(ctx, id)
	if err != nil {
		return false, err
	}
	if row == 0 {
		return false, nil
	}
	if err := m.api.DeleteRow(ctx, m.sheet, row); err != nil {
		return false, fmt.Errorf("delete row %d: %w", row, err)
	}
	return true, nil
}

// ReadAll parses every data row of the tab. Rows that do not parse are
// skipped.
func (m *Mirror) ReadAll(ctx context.Context) ([]core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.api.ReadRange(ctx, quoteSheet(m.sheet)+"!A:E")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.sheet, err)
	}
	return parseRows(values), nil
}

// Replace rewrites the whole tab with expenses in order.
func (m *Mirror) Replace(ctx context.Context, expenses []core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.api.ClearRange(ctx, quoteSheet(m.sheet)+"!A:E"); err != nil {
		return fmt.Errorf("clear %s: %w", m.sheet, err)
	}
	rows := make([][]any, 0, len(expenses)+1)
	rows = append(rows, Header)
	for _, e := range expenses {
		rows = append(rows, expenseRow(e))
	}
	rng := fmt.Sprintf("%s!A1:E%d", quoteSheet(m.sheet), len(rows))
	if err := m.api.UpdateRange(ctx, rng, rows); err != nil {
		return fmt.Errorf("write %s: %w", m.sheet, err)
	}
	return nil
}

// findRow returns the 1-based row whose column A equals id, or 0.
func (m *Mirror) findRow(ctx context.Context, id string) (int, error) {
	ids, err := m.readIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, v := range ids {
		if i == 0 {
			continue
		}
		if v == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (m *Mirror) readIDs(ctx context.Context) ([]string, error) {
	values, err := m.api.ReadRange(ctx, quoteSheet(m.sheet)+"!A:A")
	if err != nil {
		return nil, fmt.Errorf("read ids from %s: %w", m.sheet, err)
	}
	ids := make([]string, len(values))
	for i, row := range values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

// serviceAPI implements sheetAPI against the live Sheets service.
type serviceAPI struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

func (s *serviceAPI) ReadRange(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceAPI) UpdateRange(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *serviceAPI) AppendRows(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (s *serviceAPI) ClearRange(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}

func (s *serviceAPI) DeleteRow(ctx context.Context, sheet string, row int) error {
	sheetID, err := s.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

// sheetID resolves a tab title to its numeric id, caching the answer.
func (s *serviceAPI) sheetID(ctx context.Context, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.sheetIDs[title]; ok {
		return id, nil
	}

	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("load spreadsheet: %w", err)
	}
	if s.sheetIDs == nil {
		s.sheetIDs = make(map[string]int64)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok := s.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}
