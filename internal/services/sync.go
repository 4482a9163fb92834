// Package services holds the application layer: the ledger operating on
// local state and the orchestrator keeping that state loosely in sync
// with the remote store.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/localstore"
	"moneywise/internal/log"
	"moneywise/internal/wire"
)

// ErrRemoteDisabled is returned by sync operations when no remote
// endpoint is configured.
var ErrRemoteDisabled = errors.New("remote sync not configured")

// ErrSyncDeclined is returned when the user refuses a manual sync.
var ErrSyncDeclined = errors.New("sync declined")

// Remote is the sync transport: pull a (possibly partial) payload, push
// the full snapshot.
type Remote interface {
	Fetch(ctx context.Context) (wire.Payload, error)
	Push(ctx context.Context, snap core.Snapshot) error
}

// EventPublisher notifies interested consumers that the local snapshot
// changed. Optional; publish failures never fail a mutation.
type EventPublisher interface {
	PublishSnapshotSync(ctx context.Context, reason string) error
}

// Orchestrator implements the sync policy: local state is authoritative,
// pulls happen once at startup, and every mutation is followed by a
// best-effort background push of the full snapshot.
type Orchestrator struct {
	store  *localstore.Store
	remote Remote
	events EventPublisher
	logger *log.Logger

	pushTimeout time.Duration
	wg          sync.WaitGroup
}

// NewOrchestrator wires the sync policy. remote and events may be nil,
// which disables the corresponding side effects.
func NewOrchestrator(store *localstore.Store, remote Remote, events EventPublisher, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		store:       store,
		remote:      remote,
		events:      events,
		logger:      logger.WithComponent("sync"),
		pushTimeout: 30 * time.Second,
	}
}

// PullOnStartup loads local state, overlays whatever slices the remote
// returns, persists the merged result and returns it. A failed or absent
// remote degrades to local state; startup never fails on the network.
func (o *Orchestrator) PullOnStartup(ctx context.Context) (core.Snapshot, error) {
	snap, err := o.store.LoadState(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	if o.remote == nil {
		return snap, nil
	}

	payload, err := o.remote.Fetch(ctx)
	if err != nil {
		o.logger.WarnContext(ctx, "Startup pull failed, using local state", "error", err)
		return snap, nil
	}

	// Only slices present in the payload replace their local
	// counterparts.
	if payload.Transactions != nil {
		snap.Transactions = payload.Transactions
	}
	if payload.ExpenseCategories != nil {
		snap.ExpenseCategories = payload.ExpenseCategories
	}
	if payload.IncomeCategories != nil {
		snap.IncomeCategories = payload.IncomeCategories
	}
	if payload.Savings != nil {
		snap.Savings = *payload.Savings
	}

	if err := o.store.SaveState(ctx, snap); err != nil {
		return core.Snapshot{}, err
	}
	o.logger.InfoContext(ctx, "Startup pull applied",
		"transactions", len(snap.Transactions),
		"savings_days", snap.Savings.Total())
	return snap, nil
}

// PushAsync pushes the snapshot in the background. The caller's mutation
// has already been persisted locally, so a failed push only costs remote
// freshness and is repaired by the next push.
func (o *Orchestrator) PushAsync(snap core.Snapshot, reason string) {
	if o.remote == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.pushTimeout)
		defer cancel()

		if err := o.remote.Push(ctx, snap); err != nil {
			o.logger.ErrorContext(ctx, "Background push failed", "error", err, "reason", reason)
			return
		}
		o.logger.InfoContext(ctx, "Background push dispatched", "reason", reason)

		if o.events != nil {
			if err := o.events.PublishSnapshotSync(ctx, reason); err != nil {
				o.logger.WarnContext(ctx, "Sync event publish failed", "error", err)
			}
		}
	}()
}

// ManualSync pushes the current local state synchronously. confirm, when
// non-nil, is consulted first; a manual sync replaces the whole remote
// table and the user gets a chance to back out.
func (o *Orchestrator) ManualSync(ctx context.Context, confirm func() bool) error {
	if o.remote == nil {
		return ErrRemoteDisabled
	}
	if confirm != nil && !confirm() {
		return ErrSyncDeclined
	}

	snap, err := o.store.LoadState(ctx)
	if err != nil {
		return err
	}
	if err := o.remote.Push(ctx, snap); err != nil {
		return err
	}
	o.logger.InfoContext(ctx, "Manual sync dispatched",
		"transactions", len(snap.Transactions))

	if o.events != nil {
		if err := o.events.PublishSnapshotSync(ctx, "manual_sync"); err != nil {
			o.logger.WarnContext(ctx, "Sync event publish failed", "error", err)
		}
	}
	return nil
}

// Wait blocks until all in-flight background pushes finish.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
