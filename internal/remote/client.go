// Package remote talks to the sync gateway over its JSON protocol.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/wire"
)

type Client struct {
	endpoint string
	http     *http.Client
}

func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithHTTPClient lets callers supply the underlying HTTP client.
func NewWithHTTPClient(endpoint string, hc *http.Client) *Client {
	return &Client{endpoint: endpoint, http: hc}
}

// Fetch pulls the remote snapshot. Absent slices come back nil so the
// caller can apply a partial payload without clobbering local state.
func (c *Client) Fetch(ctx context.Context) (wire.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?action=get", nil)
	if err != nil {
		return wire.Payload{}, fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wire.Payload{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	var payload wire.Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return wire.Payload{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if payload.Error != "" {
		return wire.Payload{}, fmt.Errorf("remote error: %s", payload.Error)
	}
	return payload, nil
}

// Push sends the full snapshot to the gateway. The reply is treated as
// opaque: once the request is dispatched the push counts as done, and the
// body is drained without inspection. The protocol tolerates this because
// every push carries the complete state, so a silently failed push is
// repaired by the next one.
func (c *Client) Push(ctx context.Context, snap core.Snapshot) error {
	body, err := json.Marshal(wire.SyncRequest{
		Action:            wire.ActionSync,
		Transactions:      snap.Transactions,
		ExpenseCategories: snap.ExpenseCategories,
		IncomeCategories:  snap.IncomeCategories,
		Savings:           snap.Savings,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push snapshot: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
