package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// pruneTimeout bounds a single scheduled prune.
const pruneTimeout = time.Minute

// Pruner deletes history older than the retention window on a cron schedule.
type Pruner struct {
	rec       Recorder
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner registers the prune task. schedule is a standard cron spec or a
// descriptor such as "@hourly".
func NewPruner(rec Recorder, schedule string, retention time.Duration, logger *slog.Logger) (*Pruner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %v", retention)
	}

	p := &Pruner{
		rec:       rec,
		retention: retention,
		cron:      cron.New(),
		logger:    logger,
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("register prune task: %w", err)
	}
	return p, nil
}

// Start starts the scheduler.
func (p *Pruner) Start() {
	p.cron.Start()
	p.logger.Info("history pruner started", "retention", p.retention)
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info("history pruner stopped")
}

// PruneNow deletes rows older than the retention window.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	return p.rec.Prune(ctx, cutoff)
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	n, err := p.PruneNow(ctx)
	if err != nil {
		p.logger.Error("history prune failed", "error", err)
		return
	}
	p.logger.Info("history pruned", "rows", n)
}
