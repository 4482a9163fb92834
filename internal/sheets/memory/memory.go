// Package memory holds snapshot tables in memory, emulating the display
// behavior of a real spreadsheet: cells are stored as display strings and
// numeric cells render with thousands separators, so the row codec is
// exercised the same way a formatted sheet would exercise it.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	tables map[string][][]string // body rows, header excluded

	// Now is the clock used to stamp savings rows on write.
	Now func() time.Time

	// ReadErr and WriteErr, when set, make the corresponding operation
	// fail. Used to test failure semantics.
	ReadErr  error
	WriteErr error
}

var _ sheets.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tables: map[string][][]string{
			sheets.CategoriesSheet:   nil,
			sheets.TransactionsSheet: nil,
			sheets.SavingsSheet:      nil,
		},
		Now: time.Now,
	}
}

// Read decodes the current table bodies into a snapshot.
func (s *Store) Read(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return core.Snapshot{}, s.ReadErr
	}

	var snap core.Snapshot
	for _, row := range s.tables[sheets.CategoriesSheet] {
		typ, name, ok := sheets.ParseCategoryRow(row)
		if !ok {
			continue
		}
		if typ == core.Expense {
			snap.ExpenseCategories = append(snap.ExpenseCategories, name)
		} else {
			snap.IncomeCategories = append(snap.IncomeCategories, name)
		}
	}
	for _, row := range s.tables[sheets.TransactionsSheet] {
		snap.Transactions = append(snap.Transactions, sheets.ParseTransactionRow(row))
	}
	for _, row := range s.tables[sheets.SavingsSheet] {
		if day, ok := sheets.ParseSavingsRow(row); ok {
			snap.Savings.CompletedDays = append(snap.Savings.CompletedDays, day)
		}
	}
	return snap, nil
}

// Write replaces every table body with the snapshot's rows. An empty
// collection leaves its table with the header only (an empty body here).
func (s *Store) Write(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}

	s.tables[sheets.CategoriesSheet] = renderRows(sheets.CategoryCells(snap.ExpenseCategories, snap.IncomeCategories))
	var txRows [][]any
	for _, t := range sheets.SortedForWrite(snap.Transactions) {
		txRows = append(txRows, sheets.TransactionCells(t))
	}
	s.tables[sheets.TransactionsSheet] = renderRows(txRows)
	s.tables[sheets.SavingsSheet] = renderRows(sheets.SavingsCells(snap.Savings, s.Now()))
	return nil
}

// Rows exposes a table body for assertions.
func (s *Store) Rows(sheet string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.tables[sheet]))
	for i, row := range s.tables[sheet] {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// SetRows overwrites a table body directly, bypassing the codec. Lets
// tests plant legacy-era or malformed rows.
func (s *Store) SetRows(sheet string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[sheet] = rows
}

func renderRows(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = displayCell(v)
		}
		out[i] = cells
	}
	return out
}

// displayCell renders a cell the way a formatted sheet displays it:
// strings verbatim, numbers with thousands grouping.
func displayCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return groupDigits(strconv.Itoa(x))
	case float64:
		return groupDigits(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		return ""
	}
}

func groupDigits(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if neg {
		intPart = "-" + intPart
	}
	return intPart + frac
}
