package amqp

import (
	"testing"
	"time"
)

func TestSnapshotSyncMessageRoundTrip(t *testing.T) {
	msg := NewSnapshotSyncMessage("transaction_added")
	if msg.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := SnapshotSyncMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Reason != "transaction_added" {
		t.Fatalf("reason: %q", got.Reason)
	}
	if !got.Timestamp.Truncate(time.Millisecond).Equal(msg.Timestamp.Truncate(time.Millisecond)) {
		t.Fatalf("timestamp: %v vs %v", got.Timestamp, msg.Timestamp)
	}
}

func TestSnapshotSyncMessageBadJSON(t *testing.T) {
	if _, err := SnapshotSyncMessageFromJSON([]byte("{")); err == nil {
		t.Fatal("expected error")
	}
}
