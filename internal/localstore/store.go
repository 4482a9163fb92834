// Package localstore persists the tracker's working state in SQLite. Each
// state slice is stored as one JSON document under a well-known key, so a
// partial remote pull can replace individual slices without touching the
// others.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"moneywise/internal/core"

	_ "modernc.org/sqlite"
)

// Slice keys. They match the keys the state historically lived under, so
// an exported dump stays recognizable.
const (
	KeyTransactions      = "mw_transactions"
	KeySavings           = "mw_savings"
	KeyExpenseCategories = "mw_expense_cats"
	KeyIncomeCategories  = "mw_income_cats"
)

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadState reads the full snapshot. Missing or corrupt slices fall back
// to their defaults (empty transactions and savings, the stock category
// lists), so a fresh or damaged database always yields usable state.
func (s *Store) LoadState(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot

	if err := s.loadSlice(ctx, KeyTransactions, &snap.Transactions); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Transactions == nil {
		snap.Transactions = []core.Transaction{}
	}

	if err := s.loadSlice(ctx, KeySavings, &snap.Savings); err != nil {
		return core.Snapshot{}, err
	}

	if err := s.loadSlice(ctx, KeyExpenseCategories, &snap.ExpenseCategories); err != nil {
		return core.Snapshot{}, err
	}
	if snap.ExpenseCategories == nil {
		snap.ExpenseCategories = core.DefaultExpenseCategories()
	}

	if err := s.loadSlice(ctx, KeyIncomeCategories, &snap.IncomeCategories); err != nil {
		return core.Snapshot{}, err
	}
	if snap.IncomeCategories == nil {
		snap.IncomeCategories = core.DefaultIncomeCategories()
	}

	return snap, nil
}

// loadSlice unmarshals one slice into dst, leaving dst untouched when the
// key is absent. A row that fails to unmarshal is treated as absent.
func (s *Store) loadSlice(ctx context.Context, key string, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slices WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load slice %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return nil
	}
	return nil
}

// SaveState writes the full snapshot in one transaction.
func (s *Store) SaveState(ctx context.Context, snap core.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	slices := []struct {
		key   string
		value any
	}{
		{KeyTransactions, snap.Transactions},
		{KeySavings, snap.Savings},
		{KeyExpenseCategories, snap.ExpenseCategories},
		{KeyIncomeCategories, snap.IncomeCategories},
	}
	for _, sl := range slices {
		if err := upsert(ctx, tx, sl.key, sl.value); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// SaveSlice persists a single slice under its key, used when a remote pull
// carries only part of the state.
func (s *Store) SaveSlice(ctx context.Context, key string, value any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if err := upsert(ctx, tx, key, value); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal slice %s: %w", key, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO slices (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("upsert slice %s: %w", key, err)
	}
	return nil
}
