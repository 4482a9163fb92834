// Package wire defines the JSON protocol between the tracker and the
// sync gateway. Every gateway reply uses HTTP 200; failures travel in the
// body so clients behind opaque transports can still read them.
package wire

import "moneywise/internal/core"

// ActionSync is the only mutation the gateway accepts: a full snapshot
// replace.
const ActionSync = "sync"

// Payload is the gateway's GET reply. Slices are nullable on purpose: a
// client applies only the slices that are present and keeps its local
// copy of the absent ones. The slice fields must not carry omitempty:
// an empty slice is present (and overwrites on the client), which is a
// different statement than an absent one.
type Payload struct {
	Transactions      []core.Transaction `json:"transactions"`
	ExpenseCategories []string           `json:"expenseCategories"`
	IncomeCategories  []string           `json:"incomeCategories"`
	Savings           *core.SavingsState `json:"savings"`
	Error             string             `json:"error,omitempty"`
}

// SyncRequest is the POST body pushing the client's full state.
type SyncRequest struct {
	Action            string             `json:"action"`
	Transactions      []core.Transaction `json:"transactions"`
	ExpenseCategories []string           `json:"expenseCategories"`
	IncomeCategories  []string           `json:"incomeCategories"`
	Savings           core.SavingsState  `json:"savings"`
}

// SyncResponse acknowledges a POST. Result is "success" or "error".
type SyncResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// SnapshotPayload builds a full GET reply from a snapshot.
func SnapshotPayload(snap core.Snapshot) Payload {
	savings := snap.Savings
	return Payload{
		Transactions:      emptyIfNil(snap.Transactions),
		ExpenseCategories: emptyIfNilStrings(snap.ExpenseCategories),
		IncomeCategories:  emptyIfNilStrings(snap.IncomeCategories),
		Savings:           &savings,
	}
}

// Snapshot converts a sync request back into a snapshot.
func (r SyncRequest) Snapshot() core.Snapshot {
	return core.Snapshot{
		Transactions:      r.Transactions,
		ExpenseCategories: r.ExpenseCategories,
		IncomeCategories:  r.IncomeCategories,
		Savings:           r.Savings,
	}
}

// emptyIfNil keeps present-but-empty slices distinguishable from absent
// ones on the wire: a full payload always carries all four slices.
func emptyIfNil(in []core.Transaction) []core.Transaction {
	if in == nil {
		return []core.Transaction{}
	}
	return in
}

func emptyIfNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
