package sheets

import (
	"context"

	"moneywise/internal/core"
)

// Ports for the remote tabular store. The remote side is a replica: Write
// replaces entire table bodies, never merging into existing rows.
type (
	SnapshotReader interface {
		Read(ctx context.Context) (core.Snapshot, error)
	}

	SnapshotWriter interface {
		Write(ctx context.Context, snap core.Snapshot) error
	}

	// Store is a full read/overwrite remote backend.
	Store interface {
		SnapshotReader
		SnapshotWriter
	}
)
