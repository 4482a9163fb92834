package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/sheets/memory"
	"moneywise/internal/wire"
)

func newTestServer(t *testing.T, store *memory.Store) *httptest.Server {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	srv := httptest.NewServer(New(store, 2*time.Second, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestGetReturnsFullSnapshot(t *testing.T) {
	store := memory.New()
	snap := core.Snapshot{
		Transactions:      []core.Transaction{{ID: "a", Date: "2024-01-01", Type: core.Expense, Category: "食物", Amount: 100}},
		ExpenseCategories: []string{"食物"},
		IncomeCategories:  []string{"薪水"},
		Savings:           core.SavingsState{CompletedDays: []int{1, 2}},
	}
	if err := store.Write(context.Background(), snap); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/?action=get")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var payload wire.Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error != "" {
		t.Fatalf("unexpected error: %q", payload.Error)
	}
	if len(payload.Transactions) != 1 || payload.Transactions[0].Category != "食物" {
		t.Fatalf("transactions: %+v", payload.Transactions)
	}
	if payload.Savings == nil || payload.Savings.Total() != 3 {
		t.Fatalf("savings: %+v", payload.Savings)
	}
}

func TestGetOnEmptyStoreCarriesAllSlices(t *testing.T) {
	srv := newTestServer(t, memory.New())

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// A full payload always names all four slices so the client can tell
	// "empty" from "absent".
	for _, key := range []string{"transactions", "expenseCategories", "incomeCategories", "savings"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing slice %q in %s", key, body)
		}
	}
}

func TestPostSyncReplacesSnapshot(t *testing.T) {
	store := memory.New()
	seed := core.Snapshot{Transactions: []core.Transaction{{ID: "old", Date: "2023-01-01", Type: core.Expense, Category: "x", Amount: 1}}}
	if err := store.Write(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := newTestServer(t, store)

	req := wire.SyncRequest{
		Action:            wire.ActionSync,
		Transactions:      []core.Transaction{{ID: "new", Date: "2024-05-01", CreatedAt: "2024-05-01T00:00:00Z", Type: core.Income, Category: "薪水", Amount: 500}},
		ExpenseCategories: []string{"食物"},
		IncomeCategories:  []string{"薪水"},
		Savings:           core.SavingsState{CompletedDays: []int{9}},
	}
	body, _ := json.Marshal(req)
	resp, err := http.Post(srv.URL+"/", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var ack wire.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.Result != "success" {
		t.Fatalf("ack: %+v", ack)
	}

	got, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].ID != "new" {
		t.Fatalf("old snapshot must be replaced: %+v", got.Transactions)
	}
	if got.Savings.Total() != 9 {
		t.Fatalf("savings: %v", got.Savings.CompletedDays)
	}
}

func TestPostUnknownActionIsProtocolError(t *testing.T) {
	srv := newTestServer(t, memory.New())

	resp, err := http.Post(srv.URL+"/", "application/json", bytes.NewReader([]byte(`{"action":"drop"}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	// Errors still travel on a 200.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var ack wire.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.Result != "error" || ack.Error == "" {
		t.Fatalf("ack: %+v", ack)
	}
}

func TestStoreFailureIsBodyError(t *testing.T) {
	store := memory.New()
	store.ReadErr = errors.New("backend unreachable")
	srv := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var payload wire.Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error == "" {
		t.Fatal("expected error in body")
	}
}
