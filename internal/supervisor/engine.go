package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/quotesync/internal/connection"
	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/poller"
	"github.com/rickgao/quotesync/internal/store"
)

var (
	ErrClosed         = errors.New("engine closed")
	ErrNotStarted     = errors.New("engine not started")
	ErrAlreadyStarted = errors.New("engine already started")
)

// eventBufferSize bounds queued events between helpers and the run loop.
const eventBufferSize = 64

// Puller fetches a full quote batch for a watch set. An empty watch set asks
// for the server default quotes.
type Puller interface {
	FetchQuotes(ctx context.Context, ws model.WatchSet) ([]model.Quote, error)
}

// ClientFactory creates a fresh, unconnected push client.
type ClientFactory func(logger *slog.Logger) connection.Client

// Observer is called with a snapshot after every store or state change.
// Observers run on the engine goroutine and must not block.
type Observer func(Snapshot)

// Snapshot is the consumer view of the engine.
type Snapshot struct {
	store.Snapshot
	State       ConnectionState `json:"state"`
	PushPending bool            `json:"push_pending"`
	WatchSet    model.WatchSet  `json:"watch_set"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Quotes = append(make([]model.Quote, 0, len(s.Quotes)), s.Quotes...)
	out.WatchSet = s.WatchSet.Clone()
	return out
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClientFactory replaces the push client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(e *Engine) {
		e.newClient = f
	}
}

type observerEntry struct {
	id uint64
	fn Observer
}

// Engine synchronizes quotes for a watch set over the pull and push channels.
type Engine struct {
	id        string
	cfg       Config
	puller    Puller
	newClient ClientFactory
	logger    *slog.Logger

	store  *store.Store
	poller *poller.Poller
	events chan event

	// Lifecycle
	lifeMu       sync.Mutex
	started      bool
	closed       bool
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{} // closed when run returns
	released     chan struct{} // closed once helpers have exited too
	helpers      sync.WaitGroup
	teardownOnce sync.Once
	loopID       atomic.Uint64 // goroutine id of run

	obsMu     sync.Mutex
	observers []observerEntry
	nextObsID uint64

	// Written only by the run goroutine, under viewMu.
	viewMu      sync.RWMutex
	state       ConnectionState
	pushPending bool
	watchSet    model.WatchSet
	current     Snapshot

	// Owned by the run goroutine.
	push           *pushSession
	reconnectTimer *time.Timer
	attempt        int
}

// New creates an engine for ws. Start must be called before commands are
// accepted.
func New(cfg Config, ws model.WatchSet, puller Puller, opts ...Option) (*Engine, error) {
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	if puller == nil {
		return nil, errors.New("puller is required")
	}

	defaults := DefaultConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.Reconnect.BaseDelay <= 0 {
		cfg.Reconnect.BaseDelay = defaults.Reconnect.BaseDelay
	}
	if cfg.Reconnect.MaxDelay <= 0 {
		cfg.Reconnect.MaxDelay = defaults.Reconnect.MaxDelay
	}

	e := &Engine{
		id:       uuid.NewString(),
		cfg:      cfg,
		puller:   puller,
		store:    store.New(),
		events:   make(chan event, eventBufferSize),
		done:     make(chan struct{}),
		released: make(chan struct{}),
		watchSet: ws.Clone(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("engine", e.id)

	if e.newClient == nil {
		stream := cfg.Stream
		e.newClient = func(logger *slog.Logger) connection.Client {
			return connection.NewClient(stream, logger)
		}
	}

	e.poller = poller.New(
		poller.Config{Interval: cfg.RefreshInterval},
		poller.TickHandlerFunc(e.onTick),
		e.logger.With("component", "poller"),
	)
	e.current = e.buildSnapshot()

	return e, nil
}

// ID returns the engine instance id.
func (e *Engine) ID() string {
	return e.id
}

// Start runs the engine until Teardown or until ctx is canceled.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)

	go e.run()

	e.logger.Info("engine started",
		"symbols", len(e.watchSet),
		"refresh_interval", e.cfg.RefreshInterval,
		"reconnect", e.cfg.Reconnect.Enabled,
	)

	return nil
}

// Teardown closes the push channel, stops the timer and cancels in-flight
// pulls. It blocks until everything is released; no observer is called after
// it returns. Safe to call more than once.
//
// Called from an observer, Teardown only initiates the release and returns;
// the run loop completes it (including the final CLOSED notification) once
// the callback returns.
func (e *Engine) Teardown() {
	e.teardownOnce.Do(e.release)

	if e.onLoop() {
		return
	}
	<-e.released
}

// release is the single teardown routine.
func (e *Engine) release() {
	e.lifeMu.Lock()
	e.closed = true
	started := e.started
	e.lifeMu.Unlock()

	if !started {
		// No run loop to hand off to.
		e.setState(StateClosed)
		e.publish()
		close(e.released)
		return
	}

	e.cancel()
}

// onLoop reports whether the caller is the run goroutine.
func (e *Engine) onLoop() bool {
	id := e.loopID.Load()
	return id != 0 && id == goroutineID()
}

// Refresh forces one immediate pull and, while streaming, resends the
// subscription.
func (e *Engine) Refresh() error {
	return e.send(refreshCmd{})
}

// UpdateWatchSet replaces the watch set. The new set is forwarded to the push
// channel while streaming and one immediate pull is issued.
func (e *Engine) UpdateWatchSet(ws model.WatchSet) error {
	if err := ws.Validate(); err != nil {
		return fmt.Errorf("update watch set: %w", err)
	}
	return e.send(updateWatchSetCmd{watchSet: ws.Clone()})
}

// Snapshot returns the current consumer view.
func (e *Engine) Snapshot() Snapshot {
	e.viewMu.RLock()
	snap := e.current
	e.viewMu.RUnlock()
	return snap.clone()
}

// State returns the current connection state.
func (e *Engine) State() ConnectionState {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	return e.state
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (e *Engine) Subscribe(fn Observer) (cancel func()) {
	e.obsMu.Lock()
	e.nextObsID++
	id := e.nextObsID
	e.observers = append(e.observers, observerEntry{id: id, fn: fn})
	e.obsMu.Unlock()

	return func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		for i, o := range e.observers {
			if o.id == id {
				e.observers = append(e.observers[:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

// send delivers a command to the run loop.
func (e *Engine) send(ev event) error {
	e.lifeMu.Lock()
	if e.closed {
		e.lifeMu.Unlock()
		return ErrClosed
	}
	if !e.started {
		e.lifeMu.Unlock()
		return ErrNotStarted
	}
	e.lifeMu.Unlock()

	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

// post delivers a helper result unless ctx is canceled first.
func (e *Engine) post(ctx context.Context, ev event) bool {
	select {
	case e.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// onTick is the poller handler.
func (e *Engine) onTick(ctx context.Context) {
	e.post(ctx, pollTick{})
}

// buildSnapshot assembles the consumer view (run goroutine only).
func (e *Engine) buildSnapshot() Snapshot {
	return Snapshot{
		Snapshot:    e.store.Snapshot(),
		State:       e.state,
		PushPending: e.pushPending,
		WatchSet:    e.watchSet.Clone(),
	}
}

// publish stores the current view and notifies observers.
func (e *Engine) publish() {
	snap := e.buildSnapshot()

	e.viewMu.Lock()
	e.current = snap
	e.viewMu.Unlock()

	e.obsMu.Lock()
	observers := make([]observerEntry, len(e.observers))
	copy(observers, e.observers)
	e.obsMu.Unlock()

	for _, o := range observers {
		o.fn(snap.clone())
	}
}

func (e *Engine) setState(s ConnectionState) {
	e.viewMu.Lock()
	old := e.state
	e.state = s
	e.viewMu.Unlock()

	if old != s {
		e.logger.Info("state transition", "from", old, "to", s)
	}
}

func (e *Engine) setPushPending(pending bool) {
	e.viewMu.Lock()
	e.pushPending = pending
	e.viewMu.Unlock()
}

func (e *Engine) setWatchSet(ws model.WatchSet) {
	e.viewMu.Lock()
	e.watchSet = ws
	e.viewMu.Unlock()
}
