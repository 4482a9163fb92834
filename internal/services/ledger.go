package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/localstore"
	"moneywise/internal/log"
)

// ErrTransactionNotFound is returned when a delete names an unknown id.
var ErrTransactionNotFound = errors.New("transaction not found")

// Ledger is the tracker's main service. It owns the in-memory snapshot,
// persists every mutation to the local store before returning, and hands
// a copy to the orchestrator for a background push afterwards. Local
// persistence failing fails the operation; the push never does.
type Ledger struct {
	store  *localstore.Store
	sync   *Orchestrator
	logger *log.Logger

	mu   sync.Mutex
	snap core.Snapshot
}

// NewLedger builds the ledger, pulling remote state on startup.
func NewLedger(ctx context.Context, store *localstore.Store, orch *Orchestrator, logger *log.Logger) (*Ledger, error) {
	snap, err := orch.PullOnStartup(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return &Ledger{
		store:  store,
		sync:   orch,
		logger: logger.WithComponent("ledger"),
		snap:   snap,
	}, nil
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() core.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap.Clone()
}

// AddTransaction validates and records a new entry.
func (l *Ledger) AddTransaction(ctx context.Context, typ core.TransactionType, date, category string, amount float64, note string) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.snap.ExpenseCategories
	if typ == core.Income {
		active = l.snap.IncomeCategories
	}
	tx, err := core.NewTransaction(typ, date, category, amount, note, active)
	if err != nil {
		return core.Transaction{}, err
	}

	next := l.snap.Clone()
	next.Transactions = append(next.Transactions, tx)
	if err := l.commit(ctx, next, "transaction_added"); err != nil {
		return core.Transaction{}, err
	}

	l.logger.InfoContext(ctx, "Transaction recorded",
		"id", tx.ID,
		"type", tx.Type,
		"category", tx.Category,
		"amount", tx.Amount)
	return tx, nil
}

// DeleteTransaction removes one entry by id.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	n, err := l.DeleteTransactions(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// DeleteTransactions removes every entry whose id is listed and reports
// how many were removed. Unknown ids are skipped.
func (l *Ledger) DeleteTransactions(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.snap.Clone()
	kept := next.Transactions[:0]
	for _, tx := range next.Transactions {
		if !drop[tx.ID] {
			kept = append(kept, tx)
		}
	}
	removed := len(next.Transactions) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	next.Transactions = kept

	if err := l.commit(ctx, next, "transaction_deleted"); err != nil {
		return 0, err
	}
	l.logger.InfoContext(ctx, "Transactions deleted", "count", removed)
	return removed, nil
}

// ToggleSavingsDay flips a day's membership in the savings plan and
// reports whether the day is now completed.
func (l *Ledger) ToggleSavingsDay(ctx context.Context, day int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.snap.Clone()
	toggled, err := next.Savings.Toggle(day)
	if err != nil {
		return false, err
	}
	next.Savings = toggled
	if err := l.commit(ctx, next, "savings_toggled"); err != nil {
		return false, err
	}

	completed := l.snap.Savings.Contains(day)
	l.logger.InfoContext(ctx, "Savings day toggled",
		"day", day,
		"completed", completed,
		"total", l.snap.Savings.Total())
	return completed, nil
}

// AddCategory appends a category to the list of the given type.
func (l *Ledger) AddCategory(ctx context.Context, typ core.TransactionType, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.snap.Clone()
	if typ == core.Expense {
		updated, err := core.AddCategory(next.ExpenseCategories, name)
		if err != nil {
			return err
		}
		next.ExpenseCategories = updated
	} else {
		updated, err := core.AddCategory(next.IncomeCategories, name)
		if err != nil {
			return err
		}
		next.IncomeCategories = updated
	}

	if err := l.commit(ctx, next, "category_added"); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Category added", "type", typ, "name", name)
	return nil
}

// RemoveCategory removes a category from the list of the given type.
// Existing transactions keep their category string; removal only affects
// what future entries may use.
func (l *Ledger) RemoveCategory(ctx context.Context, typ core.TransactionType, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.snap.Clone()
	if typ == core.Expense {
		next.ExpenseCategories = core.RemoveCategory(next.ExpenseCategories, name)
	} else {
		next.IncomeCategories = core.RemoveCategory(next.IncomeCategories, name)
	}

	if err := l.commit(ctx, next, "category_removed"); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Category removed", "type", typ, "name", name)
	return nil
}

// Categories returns the active list for the given type.
func (l *Ledger) Categories(typ core.TransactionType) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if typ == core.Expense {
		return append([]string(nil), l.snap.ExpenseCategories...)
	}
	return append([]string(nil), l.snap.IncomeCategories...)
}

// RecordedToday returns up to limit entries recorded today, newest first.
func (l *Ledger) RecordedToday(limit int) []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.RecordedOn(l.snap.Transactions, time.Now(), limit)
}

// MonthNet aggregates the given month's entries into per-day net amounts.
func (l *Ledger) MonthNet(year, month int) map[int]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.MonthNet(l.snap.Transactions, year, month)
}

// DayTransactions returns the entries dated on the given calendar day.
func (l *Ledger) DayTransactions(year, month, day int) []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.DayTransactions(l.snap.Transactions, year, month, day)
}

// SavingsProgress reports the current savings plan totals.
func (l *Ledger) SavingsProgress() core.SavingsProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap.Savings.Progress()
}

// ManualSync pushes the current state synchronously after confirmation.
func (l *Ledger) ManualSync(ctx context.Context, confirm func() bool) error {
	return l.sync.ManualSync(ctx, confirm)
}

// Close drains in-flight background pushes.
func (l *Ledger) Close() {
	l.sync.Wait()
}

// commit persists the next snapshot, adopts it as current state and
// schedules a background push. Must be called with l.mu held.
func (l *Ledger) commit(ctx context.Context, next core.Snapshot, reason string) error {
	if err := l.store.SaveState(ctx, next); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	l.snap = next
	l.sync.PushAsync(next.Clone(), reason)
	return nil
}
