// Package sheets defines the remote store ports and the row codec shared
// by the concrete backends: one pure parse-and-normalize step per table,
// including the legacy/new transaction row heuristic.
package sheets

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"moneywise/internal/core"
)

// Sheet names and headers as they appear on the spreadsheet.
const (
	TransactionsSheet = "記帳紀錄"
	CategoriesSheet   = "分類"
	SavingsSheet      = "365實行計畫"

	// TransactionColumns is the current transaction table width.
	TransactionColumns = 7
)

func TransactionsHeader() []string {
	return []string{"ID", "錄入時間", "帳目時間", "分類", "類別", "金額", "備註"}
}

func CategoriesHeader() []string { return []string{"分類", "類別"} }

func SavingsHeader() []string { return []string{"紀錄時間", "金額"} }

// Display forms used on the sheet. Timestamps render in local time, the
// way the spreadsheet shows them to a human inspecting it.
const timestampDisplayLayout = "2006/01/02 15:04"

// ParseTransactionRow decodes one display-value row into a transaction,
// detecting the row era per row: rows with the full column count, or whose
// 4th column carries a recognized type label, are the current layout
// (id, createdAt, date, label, category, amount, note); anything else is
// the legacy layout without an id column, shifted left by one. Legacy rows
// get a synthesized id.
func ParseTransactionRow(row []string) core.Transaction {
	get := func(i int) string {
		if i >= 0 && i < len(row) {
			return row[i]
		}
		return ""
	}

	_, labelled := core.TypeFromLabel(strings.TrimSpace(get(3)))
	isNew := len(row) >= TransactionColumns || labelled

	var t core.Transaction
	if isNew {
		t.ID = get(0)
		t.CreatedAt = NormalizeTimestamp(get(1))
		t.Date = NormalizeDate(get(2))
		t.Type = typeFromCell(get(3))
		t.Category = get(4)
		t.Amount = CellAmount(get(5))
		t.Note = get(6)
	} else {
		t.ID = uuid.NewString()
		t.CreatedAt = NormalizeTimestamp(get(0))
		t.Date = NormalizeDate(get(1))
		t.Type = typeFromCell(get(2))
		t.Category = get(3)
		t.Amount = CellAmount(get(4))
		t.Note = get(5)
	}
	return t
}

// typeFromCell mirrors the historical mapping: the expense label maps to
// expense, everything else to income.
func typeFromCell(label string) core.TransactionType {
	if strings.TrimSpace(label) == core.ExpenseLabel {
		return core.Expense
	}
	return core.Income
}

// TransactionCells encodes a transaction into its display row. The amount
// stays numeric so the backend stores a number; all other cells are text.
// A missing id is synthesized so the remote table never carries blank ids.
func TransactionCells(t core.Transaction) []any {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	return []any{
		id,
		FormatTimestamp(t.CreatedAt),
		FormatDate(t.Date),
		t.Type.Label(),
		t.Category,
		t.Amount,
		t.Note,
	}
}

// SortedForWrite returns a copy ordered by descending ledger date, the
// presentation order used on the remote table. Recording time does not
// participate in the ordering.
func SortedForWrite(transactions []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), transactions...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}

// CategoryCells encodes both category lists into (label, name) rows,
// expense rows first, preserving list order.
func CategoryCells(expense, income []string) [][]any {
	rows := make([][]any, 0, len(expense)+len(income))
	for _, c := range expense {
		rows = append(rows, []any{core.ExpenseLabel, c})
	}
	for _, c := range income {
		rows = append(rows, []any{core.IncomeLabel, c})
	}
	return rows
}

// ParseCategoryRow projects a (label, name) row onto the matching type.
func ParseCategoryRow(row []string) (core.TransactionType, string, bool) {
	if len(row) < 2 {
		return "", "", false
	}
	typ, ok := core.TypeFromLabel(strings.TrimSpace(row[0]))
	if !ok {
		return "", "", false
	}
	return typ, row[1], true
}

// SavingsCells encodes the completed days ascending, each stamped with the
// write-time timestamp. The remote table holds current membership only,
// not per-day completion history.
func SavingsCells(s core.SavingsState, now time.Time) [][]any {
	days := append([]int(nil), s.CompletedDays...)
	sort.Ints(days)
	stamp := now.Format(timestampDisplayLayout)
	rows := make([][]any, 0, len(days))
	for _, d := range days {
		rows = append(rows, []any{stamp, d})
	}
	return rows
}

// ParseSavingsRow extracts the day number from a (timestamp, day) row,
// rejecting non-numeric rows.
func ParseSavingsRow(row []string) (int, bool) {
	if len(row) < 2 {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(row[1], ",", "")), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int(f), true
}

// CellAmount parses a display amount, stripping grouping separators. Any
// value that does not parse to a finite number is coerced to 0 so one bad
// cell never fails the whole read.
func CellAmount(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// NormalizeTimestamp converts a display timestamp back to ISO-8601. An
// unparseable value passes through unchanged.
func NormalizeTimestamp(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	norm := strings.ReplaceAll(s, "/", "-")
	for _, layout := range []string{
		"2006-01-02 15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.ParseInLocation(layout, norm, time.Local); err == nil {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	if ts, err := time.Parse(time.RFC3339, norm); err == nil {
		return ts.UTC().Format(time.RFC3339)
	}
	return s
}

// FormatTimestamp converts an ISO-8601 timestamp to the sheet display
// form. An unparseable value passes through unchanged.
func FormatTimestamp(iso string) string {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return ""
	}
	ts, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return iso
	}
	return ts.In(time.Local).Format(timestampDisplayLayout)
}

// NormalizeDate converts yyyy/MM/dd to YYYY-MM-DD.
func NormalizeDate(s string) string { return strings.ReplaceAll(s, "/", "-") }

// FormatDate converts YYYY-MM-DD to yyyy/MM/dd.
func FormatDate(s string) string { return strings.ReplaceAll(s, "-", "/") }
