package services

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/gateway"
	"moneywise/internal/remote"
	"moneywise/internal/sheets/memory"
)

func newTestLedger(t *testing.T, r Remote) *Ledger {
	t.Helper()
	store := testStore(t)
	orch := NewOrchestrator(store, r, nil, testLogger())
	l, err := NewLedger(context.Background(), store, orch, testLogger())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestAddTransactionValidation(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		typ      core.TransactionType
		date     string
		category string
		amount   float64
		wantErr  error
	}{
		{"unknown category", core.Expense, "2024-01-01", "nope", 10, core.ErrUnknownCategory},
		{"empty category", core.Expense, "2024-01-01", "", 10, core.ErrEmptyCategory},
		{"zero amount", core.Expense, "2024-01-01", "食物", 0, core.ErrInvalidAmount},
		{"negative amount", core.Expense, "2024-01-01", "食物", -5, core.ErrInvalidAmount},
		{"bad date", core.Expense, "01/01/2024", "食物", 10, core.ErrInvalidDate},
		{"bad type", core.TransactionType("transfer"), "2024-01-01", "食物", 10, core.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.AddTransaction(ctx, tt.typ, tt.date, tt.category, tt.amount, ""); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := l.Snapshot(); len(got.Transactions) != 0 {
		t.Fatalf("failed adds must not mutate state: %+v", got.Transactions)
	}
}

func TestAddTransactionPerTypeCategoryList(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	// 薪水 is an income category, not an expense one.
	if _, err := l.AddTransaction(ctx, core.Expense, "2024-01-01", "薪水", 10, ""); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("err: %v", err)
	}
	tx, err := l.AddTransaction(ctx, core.Income, "2024-01-01", "薪水", 50000, "january")
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	if tx.ID == "" || tx.CreatedAt == "" {
		t.Fatalf("incomplete entry: %+v", tx)
	}
	if _, err := time.Parse(time.RFC3339, tx.CreatedAt); err != nil {
		t.Fatalf("createdAt: %q", tx.CreatedAt)
	}
}

func TestDeleteTransaction(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	tx, err := l.AddTransaction(ctx, core.Expense, "2024-01-01", "食物", 100, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := l.DeleteTransaction(ctx, "missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("err: %v", err)
	}
	if err := l.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := l.Snapshot(); len(got.Transactions) != 0 {
		t.Fatalf("still present: %+v", got.Transactions)
	}
}

func TestDeleteTransactionsBulk(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	var ids []string
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		tx, err := l.AddTransaction(ctx, core.Expense, d, "食物", 10, "")
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, tx.ID)
	}

	n, err := l.DeleteTransactions(ctx, []string{ids[0], ids[2], "missing"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	got := l.Snapshot()
	if len(got.Transactions) != 1 || got.Transactions[0].ID != ids[1] {
		t.Fatalf("remaining: %+v", got.Transactions)
	}
}

func TestToggleSavingsDay(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	on, err := l.ToggleSavingsDay(ctx, 42)
	if err != nil || !on {
		t.Fatalf("toggle on: %v %v", on, err)
	}
	off, err := l.ToggleSavingsDay(ctx, 42)
	if err != nil || off {
		t.Fatalf("toggle off: %v %v", off, err)
	}
	if _, err := l.ToggleSavingsDay(ctx, 0); !errors.Is(err, core.ErrInvalidDay) {
		t.Fatalf("day 0: %v", err)
	}
	if _, err := l.ToggleSavingsDay(ctx, 366); !errors.Is(err, core.ErrInvalidDay) {
		t.Fatalf("day 366: %v", err)
	}
}

func TestCategoryManagement(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	if err := l.AddCategory(ctx, core.Expense, "房租"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.AddCategory(ctx, core.Expense, "房租"); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("dup: %v", err)
	}
	// Same name in the other list is fine; uniqueness is per list.
	if err := l.AddCategory(ctx, core.Income, "房租"); err != nil {
		t.Fatalf("cross-list add: %v", err)
	}

	if _, err := l.AddTransaction(ctx, core.Expense, "2024-01-01", "房租", 9000, ""); err != nil {
		t.Fatalf("use new category: %v", err)
	}

	if err := l.RemoveCategory(ctx, core.Expense, "房租"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// No cascade: the old entry keeps its category string.
	got := l.Snapshot()
	if len(got.Transactions) != 1 || got.Transactions[0].Category != "房租" {
		t.Fatalf("cascade happened: %+v", got.Transactions)
	}
	// But new entries can no longer use it.
	if _, err := l.AddTransaction(ctx, core.Expense, "2024-01-02", "房租", 1, ""); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("removed category usable: %v", err)
	}
}

func TestMutationsPushInBackground(t *testing.T) {
	rem := &fakeRemote{}
	l := newTestLedger(t, rem)
	ctx := context.Background()

	if _, err := l.AddTransaction(ctx, core.Expense, "2024-01-01", "食物", 100, "lunch"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.ToggleSavingsDay(ctx, 7); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	l.Close() // drain pushes

	pushes := rem.pushed()
	if len(pushes) != 2 {
		t.Fatalf("pushes: %d", len(pushes))
	}
	// Pushes are unordered, but each carries the full state at its own
	// capture time, so the toggle's push holds both mutations.
	found := false
	for _, p := range pushes {
		if len(p.Transactions) == 1 && p.Savings.Total() == 7 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no push carries the complete state: %+v", pushes)
	}
}

func TestFailedPushLeavesLocalStateIntact(t *testing.T) {
	rem := &fakeRemote{pushErr: errors.New("gateway down")}
	l := newTestLedger(t, rem)
	ctx := context.Background()

	tx, err := l.AddTransaction(ctx, core.Expense, "2024-01-01", "食物", 100, "")
	if err != nil {
		t.Fatalf("mutation must not fail on push: %v", err)
	}
	l.Close()

	got := l.Snapshot()
	if len(got.Transactions) != 1 || got.Transactions[0].ID != tx.ID {
		t.Fatalf("local state lost: %+v", got.Transactions)
	}
}

func TestViews(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	if _, err := l.AddTransaction(ctx, core.Expense, "2024-03-10", "食物", 100, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.AddTransaction(ctx, core.Income, "2024-03-10", "薪水", 500, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	net := l.MonthNet(2024, 3)
	if net[10] != 400 {
		t.Fatalf("net: %v", net)
	}
	if day := l.DayTransactions(2024, 3, 10); len(day) != 2 {
		t.Fatalf("day view: %+v", day)
	}
	// Entries were recorded just now, so the today view sees them.
	if today := l.RecordedToday(10); len(today) != 2 {
		t.Fatalf("today view: %+v", today)
	}

	p := l.SavingsProgress()
	if p.Target != 66795 || p.Saved != 0 {
		t.Fatalf("progress: %+v", p)
	}
}

// End-to-end: ledger -> HTTP client -> gateway -> in-memory sheet and
// back through a fresh ledger pulling at startup.
func TestLedgerSyncsThroughGateway(t *testing.T) {
	sheet := memory.New()
	srv := httptest.NewServer(gateway.New(sheet, 2*time.Second, testLogger()).Handler())
	defer srv.Close()
	client := remote.New(srv.URL)
	ctx := context.Background()

	storeA := testStore(t)
	orchA := NewOrchestrator(storeA, client, nil, testLogger())
	a, err := NewLedger(ctx, storeA, orchA, testLogger())
	if err != nil {
		t.Fatalf("ledger a: %v", err)
	}

	// The startup pull adopted the fresh remote's empty category lists
	// (present slices always win), so the category goes in first.
	if err := a.AddCategory(ctx, core.Expense, "食物"); err != nil {
		t.Fatalf("add category: %v", err)
	}
	if _, err := a.AddTransaction(ctx, core.Expense, "2024-04-01", "食物", 120, "bento"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := a.ToggleSavingsDay(ctx, 15); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	a.Close() // drain background pushes, which carry no ordering guarantee
	// A confirmed manual sync pins the remote to the final state.
	if err := a.ManualSync(ctx, func() bool { return true }); err != nil {
		t.Fatalf("manual sync: %v", err)
	}

	// The remote table carries the expense label, not the enum value.
	rows := sheet.Rows("記帳紀錄")
	if len(rows) != 1 || rows[0][3] != "支出" || rows[0][4] != "食物" {
		t.Fatalf("remote rows: %v", rows)
	}

	// A second ledger with an empty local store picks the state up.
	storeB := testStore(t)
	orchB := NewOrchestrator(storeB, client, nil, testLogger())
	b, err := NewLedger(ctx, storeB, orchB, testLogger())
	if err != nil {
		t.Fatalf("ledger b: %v", err)
	}
	defer b.Close()

	got := b.Snapshot()
	if len(got.Transactions) != 1 || got.Transactions[0].Note != "bento" {
		t.Fatalf("pulled transactions: %+v", got.Transactions)
	}
	if !got.Savings.Contains(15) {
		t.Fatalf("pulled savings: %v", got.Savings.CompletedDays)
	}
}
