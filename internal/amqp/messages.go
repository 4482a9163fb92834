package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotSyncMessage asks the worker to push the current local snapshot
// to the remote store. It deliberately carries no state: the worker loads
// the snapshot from the local store at processing time, so a burst of
// mutations collapses into pushes of the latest state.
type SnapshotSyncMessage struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSnapshotSyncMessage creates a sync message tagged with the mutation
// that triggered it.
func NewSnapshotSyncMessage(reason string) *SnapshotSyncMessage {
	return &SnapshotSyncMessage{
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotSyncMessageFromJSON creates a message from JSON bytes
func SnapshotSyncMessageFromJSON(data []byte) (*SnapshotSyncMessage, error) {
	var msg SnapshotSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
