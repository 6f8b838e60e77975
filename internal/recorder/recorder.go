package recorder

import (
	"context"
	"time"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/store"
)

// Row is one quote as delivered in one batch.
type Row struct {
	RecordedAt time.Time
	Source     store.Source
	Version    uint64
	Quote      model.Quote
}

// Recorder stores quote rows.
type Recorder interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Insert writes rows and returns how many were new.
	Insert(ctx context.Context, rows []Row) (int, error)

	// Prune deletes rows recorded before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// RowsFromSnapshot expands a snapshot into rows. Snapshots that do not carry
// a fresh delivery (no source yet, or a pull error) yield nothing.
func RowsFromSnapshot(snap store.Snapshot) []Row {
	if snap.Source == store.SourceNone || snap.Error != "" {
		return nil
	}

	recordedAt := snap.UpdatedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	rows := make([]Row, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		rows = append(rows, Row{
			RecordedAt: recordedAt,
			Source:     snap.Source,
			Version:    snap.Version,
			Quote:      q,
		})
	}
	return rows
}

// storeSource parses a stored source column.
func storeSource(s string) store.Source {
	switch store.Source(s) {
	case store.SourcePull, store.SourcePush:
		return store.Source(s)
	default:
		return store.SourceNone
	}
}
