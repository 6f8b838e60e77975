package recorder

import (
	"context"
	"time"
)

// NoopRecorder discards everything. Used when no driver is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (NoopRecorder) Migrate(context.Context) error { return nil }

func (NoopRecorder) Insert(_ context.Context, rows []Row) (int, error) { return len(rows), nil }

func (NoopRecorder) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (NoopRecorder) Ping(context.Context) error { return nil }

func (NoopRecorder) Close() error { return nil }
