package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/sheets"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s := New()
	snap := core.Snapshot{
		Transactions: []core.Transaction{
			{ID: "a", Date: "2024-01-01", CreatedAt: "2024-01-01T04:00:00Z", Type: core.Expense, Category: "食物", Amount: 100, Note: ""},
			{ID: "b", Date: "2024-02-01", CreatedAt: "2024-02-01T04:00:00Z", Type: core.Income, Category: "薪水", Amount: 50000, Note: "pay"},
		},
		ExpenseCategories: []string{"食物", "交通"},
		IncomeCategories:  []string{"薪水"},
		Savings:           core.SavingsState{CompletedDays: []int{1, 2, 5}},
	}
	if err := s.Write(context.Background(), snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("transactions: %+v", got.Transactions)
	}
	// Remote rows are sorted by descending ledger date.
	if got.Transactions[0].ID != "b" || got.Transactions[1].ID != "a" {
		t.Fatalf("order: %+v", got.Transactions)
	}
	// The {type, category, amount, note, date} tuples survive the trip,
	// including an amount displayed with a grouping separator.
	b := got.Transactions[0]
	if b.Type != core.Income || b.Category != "薪水" || b.Amount != 50000 || b.Note != "pay" || b.Date != "2024-02-01" {
		t.Fatalf("tuple mismatch: %+v", b)
	}
	if _, err := time.Parse(time.RFC3339, b.CreatedAt); err != nil {
		t.Fatalf("createdAt not parseable: %q", b.CreatedAt)
	}
	if len(got.ExpenseCategories) != 2 || got.ExpenseCategories[0] != "食物" {
		t.Fatalf("expense cats: %v", got.ExpenseCategories)
	}
	if len(got.IncomeCategories) != 1 || got.IncomeCategories[0] != "薪水" {
		t.Fatalf("income cats: %v", got.IncomeCategories)
	}
	if got.Savings.Total() != 8 {
		t.Fatalf("savings: %v", got.Savings.CompletedDays)
	}
}

func TestAmountDisplayUsesGrouping(t *testing.T) {
	s := New()
	snap := core.Snapshot{
		Transactions: []core.Transaction{{ID: "a", Date: "2024-01-01", Type: core.Expense, Category: "c", Amount: 1234}},
	}
	if err := s.Write(context.Background(), snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows := s.Rows(sheets.TransactionsSheet)
	if len(rows) != 1 || rows[0][5] != "1,234" {
		t.Fatalf("expected grouped display value, got %v", rows)
	}
	got, err := s.Read(context.Background())
	if err != nil || got.Transactions[0].Amount != 1234 {
		t.Fatalf("grouped amount must parse back: %+v err=%v", got.Transactions, err)
	}
}

func TestEmptyWriteClearsBody(t *testing.T) {
	s := New()
	seed := core.Snapshot{
		Transactions:      []core.Transaction{{ID: "a", Date: "2024-01-01", Type: core.Expense, Category: "c", Amount: 1}},
		ExpenseCategories: []string{"c"},
		Savings:           core.SavingsState{CompletedDays: []int{1}},
	}
	if err := s.Write(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.Write(context.Background(), core.Snapshot{}); err != nil {
		t.Fatalf("empty write: %v", err)
	}
	for _, sheet := range []string{sheets.TransactionsSheet, sheets.CategoriesSheet, sheets.SavingsSheet} {
		if rows := s.Rows(sheet); len(rows) != 0 {
			t.Fatalf("%s body not cleared: %v", sheet, rows)
		}
	}
}

func TestReadLegacyPlantedRows(t *testing.T) {
	s := New()
	s.SetRows(sheets.TransactionsSheet, [][]string{
		{"2023/05/05 09:30", "2023/05/05", "支出", "7-11", "80", ""},
	})
	got, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("transactions: %+v", got.Transactions)
	}
	tx := got.Transactions[0]
	if tx.ID == "" || tx.Category != "7-11" || tx.Amount != 80 {
		t.Fatalf("legacy parse: %+v", tx)
	}
}

func TestSavingsRowsStampedWithWriteTime(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 6, 1, 10, 30, 0, 0, time.Local)
	s.Now = func() time.Time { return fixed }

	snap := core.Snapshot{Savings: core.SavingsState{CompletedDays: []int{2, 1}}}
	if err := s.Write(context.Background(), snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows := s.Rows(sheets.SavingsSheet)
	if len(rows) != 2 || rows[0][0] != "2024/06/01 10:30" || rows[0][1] != "1" {
		t.Fatalf("rows: %v", rows)
	}
}

func TestInjectedFailures(t *testing.T) {
	s := New()
	boom := errors.New("backend unreachable")
	s.ReadErr = boom
	if _, err := s.Read(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("read err: %v", err)
	}
	s.WriteErr = boom
	if err := s.Write(context.Background(), core.Snapshot{}); !errors.Is(err, boom) {
		t.Fatalf("write err: %v", err)
	}
}
