package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TickHandler receives poll ticks. ctx is canceled when the poller stops,
// so handlers that block must select on it.
type TickHandler interface {
	HandleTick(ctx context.Context)
}

// TickHandlerFunc is a function adapter for TickHandler.
type TickHandlerFunc func(context.Context)

func (f TickHandlerFunc) HandleTick(ctx context.Context) {
	f(ctx)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
	}
}

// Poller fires ticks at a fixed interval until stopped. It can be started
// again after Stop.
type Poller struct {
	cfg     Config
	handler TickHandler
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active bool
}

// New creates a new Poller.
func New(cfg Config, handler TickHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop. With immediate set the first tick fires
// right away, otherwise after one interval. Starting an active poller is a no-op.
func (p *Poller) Start(ctx context.Context, immediate bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return nil
	}

	var runCtx context.Context
	runCtx, p.cancel = context.WithCancel(ctx)
	p.active = true

	p.wg.Add(1)
	go p.run(runCtx, immediate)

	p.logger.Debug("poller started",
		"interval", p.cfg.Interval,
		"immediate", immediate,
	)

	return nil
}

// Stop halts the polling loop and waits for it to exit, or for ctx.
// Stopping an inactive poller is a no-op.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil
	}
	p.active = false
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether the timer is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Interval returns the configured tick interval.
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// run is the main polling loop.
func (p *Poller) run(ctx context.Context, immediate bool) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	if immediate {
		p.handler.HandleTick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.handler.HandleTick(ctx)
		}
	}
}
