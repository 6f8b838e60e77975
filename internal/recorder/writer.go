package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/quotesync/internal/store"
)

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int           // Flush when this many rows are pending
	FlushInterval time.Duration // Flush at least this often
	BufferSize    int           // Queued snapshots before Observe drops
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
		BufferSize:    64,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Inserts    int64
	Duplicates int64
	Flushes    int64
	Errors     int64
	Dropped    int64
}

// Writer consumes engine snapshots and records each fresh delivery.
type Writer struct {
	cfg    WriterConfig
	rec    Recorder
	logger *slog.Logger

	input chan store.Snapshot

	// Owned by consumeLoop.
	lastVersion uint64

	// Batching
	batch   []Row
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewWriter creates a new Writer.
func NewWriter(cfg WriterConfig, rec Recorder, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}

	return &Writer{
		cfg:    cfg,
		rec:    rec,
		logger: logger,
		input:  make(chan store.Snapshot, cfg.BufferSize),
		batch:  make([]Row, 0, cfg.BatchSize),
	}
}

// Observe queues a snapshot without blocking. Safe to call from an engine
// observer.
func (w *Writer) Observe(snap store.Snapshot) {
	select {
	case w.input <- snap:
	default:
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
	}
}

// Start begins consuming snapshots and writing batches.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("quote writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued snapshots and flushes what is pending.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping quote writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("quote writer stop timed out")
		return ctx.Err()
	}

drain:
	for {
		select {
		case snap := <-w.input:
			w.handleSnapshot(ctx, snap)
		default:
			break drain
		}
	}

	w.flush(ctx)
	w.logger.Info("quote writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case snap := <-w.input:
			w.handleSnapshot(w.ctx, snap)
		}
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// handleSnapshot adds the rows of a fresh delivery to the batch. State-only
// notifications repeat the store version and are skipped.
func (w *Writer) handleSnapshot(ctx context.Context, snap store.Snapshot) {
	if snap.Version <= w.lastVersion {
		return
	}
	w.lastVersion = snap.Version

	rows := RowsFromSnapshot(snap)
	if len(rows) == 0 {
		return
	}

	w.batchMu.Lock()
	w.batch = append(w.batch, rows...)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(ctx)
	}
}

// flush writes the current batch.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]Row, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	inserted, err := w.rec.Insert(ctx, batch)
	if err != nil {
		w.logger.Error("quote insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(inserted)
	w.metrics.Duplicates += int64(len(batch) - inserted)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed quotes",
		"count", len(batch),
		"duplicates", len(batch)-inserted,
		"duration", time.Since(start),
	)
}
