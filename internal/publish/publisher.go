package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/quotesync/internal/supervisor"
)

// publishTimeout bounds a single MULTI/EXEC round trip.
const publishTimeout = 5 * time.Second

// Config holds Redis key names.
type Config struct {
	Channel string // Pub/sub channel
	Key     string // Latest snapshot key; symbol hash is Key + ":symbols"
}

// Metrics tracks publisher activity.
type Metrics struct {
	Published int64
	Coalesced int64
	Errors    int64
}

// Publisher writes snapshots to Redis.
type Publisher struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger

	pending chan supervisor.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	metrics Metrics
}

// NewClient creates a Redis client.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// New creates a publisher on an existing client.
func New(client *redis.Client, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		pending: make(chan supervisor.Snapshot, 1),
	}
}

// SymbolsKey is the hash holding one field per quoted symbol.
func (p *Publisher) SymbolsKey() string {
	return p.cfg.Key + ":symbols"
}

// Start begins publishing observed snapshots.
func (p *Publisher) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.loop()

	p.logger.Info("redis publisher started",
		"channel", p.cfg.Channel,
		"key", p.cfg.Key,
	)
	return nil
}

// Stop publishes the last pending snapshot and stops.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	select {
	case snap := <-p.pending:
		if err := p.Publish(ctx, snap); err != nil {
			p.logger.Warn("final publish failed", "error", err)
		}
	default:
	}

	p.logger.Info("redis publisher stopped")
	return nil
}

// Observe queues snap, replacing any snapshot not yet published. Never
// blocks.
func (p *Publisher) Observe(snap supervisor.Snapshot) {
	for {
		select {
		case p.pending <- snap:
			return
		default:
		}

		select {
		case <-p.pending:
			p.mu.Lock()
			p.metrics.Coalesced++
			p.mu.Unlock()
		default:
		}
	}
}

// Publish writes snap to Redis.
func (p *Publisher) Publish(ctx context.Context, snap supervisor.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	fields := make(map[string]any, len(snap.Quotes))
	for _, q := range snap.Quotes {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal quote %s: %w", q.Symbol, err)
		}
		fields[q.Symbol] = data
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.cfg.Key, payload, 0)
	pipe.Del(ctx, p.SymbolsKey())
	if len(fields) > 0 {
		pipe.HSet(ctx, p.SymbolsKey(), fields)
	}
	pipe.Publish(ctx, p.cfg.Channel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		p.mu.Lock()
		p.metrics.Errors++
		p.mu.Unlock()
		return fmt.Errorf("publish snapshot: %w", err)
	}

	p.mu.Lock()
	p.metrics.Published++
	p.mu.Unlock()
	return nil
}

// Latest reads back the last published snapshot.
func (p *Publisher) Latest(ctx context.Context) (supervisor.Snapshot, error) {
	var snap supervisor.Snapshot

	data, err := p.client.Get(ctx, p.cfg.Key).Bytes()
	if err != nil {
		return snap, fmt.Errorf("get latest: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode latest: %w", err)
	}
	return snap, nil
}

// Ping checks Redis is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Stats returns current metrics.
func (p *Publisher) Stats() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *Publisher) loop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case snap := <-p.pending:
			// An in-flight publish outlives Stop, bounded by the timeout.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), publishTimeout)
			if err := p.Publish(ctx, snap); err != nil {
				p.logger.Warn("redis publish failed", "error", err, "version", snap.Version)
			}
			cancel()
		}
	}
}
