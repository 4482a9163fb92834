// Package gateway exposes the spreadsheet-backed store over HTTP for the
// tracker's sync protocol. The transport always answers 200: protocol
// errors ride in the JSON body, so a client on an opaque transport that
// cannot read status codes loses nothing.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"moneywise/internal/log"
	"moneywise/internal/sheets"
	"moneywise/internal/wire"
)

type Server struct {
	store       sheets.Store
	lock        *semaphore.Weighted
	lockTimeout time.Duration
	logger      *log.Logger
}

func New(store sheets.Store, lockTimeout time.Duration, logger *log.Logger) *Server {
	return &Server{
		store: store,
		// One writer or reader at a time: concurrent snapshot replaces
		// on the same spreadsheet would interleave their clear+write
		// phases.
		lock:        semaphore.NewWeighted(1),
		lockTimeout: lockTimeout,
		logger:      logger.WithComponent("gateway"),
	}
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleGet)
	mux.HandleFunc("POST /", s.handlePost)
	return mux
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	release, err := s.acquire(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Lock not acquired", "error", err)
		writeJSON(w, wire.Payload{Error: err.Error()})
		return
	}
	defer release()

	snap, err := s.store.Read(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Snapshot read failed", "error", err)
		writeJSON(w, wire.Payload{Error: fmt.Sprintf("read snapshot: %v", err)})
		return
	}

	s.logger.InfoContext(ctx, "Snapshot served",
		"transactions", len(snap.Transactions),
		"duration", time.Since(start))
	writeJSON(w, wire.SnapshotPayload(snap))
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req wire.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, wire.SyncResponse{Result: "error", Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	if req.Action != wire.ActionSync {
		writeJSON(w, wire.SyncResponse{Result: "error", Error: fmt.Sprintf("unknown action %q", req.Action)})
		return
	}

	release, err := s.acquire(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Lock not acquired", "error", err)
		writeJSON(w, wire.SyncResponse{Result: "error", Error: err.Error()})
		return
	}
	defer release()

	if err := s.store.Write(ctx, req.Snapshot()); err != nil {
		s.logger.ErrorContext(ctx, "Snapshot write failed", "error", err)
		writeJSON(w, wire.SyncResponse{Result: "error", Error: fmt.Sprintf("write snapshot: %v", err)})
		return
	}

	s.logger.InfoContext(ctx, "Snapshot replaced",
		"transactions", len(req.Transactions),
		"savings_days", req.Savings.Total(),
		"duration", time.Since(start))
	writeJSON(w, wire.SyncResponse{Result: "success"})
}

// acquire takes the store lock, giving up after the configured timeout so
// a stuck writer cannot queue requests forever.
func (s *Server) acquire(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	if err := s.lock.Acquire(lockCtx, 1); err != nil {
		return nil, fmt.Errorf("store busy, lock not acquired within %v", s.lockTimeout)
	}
	return func() { s.lock.Release(1) }, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	// Always 200; see package comment.
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
