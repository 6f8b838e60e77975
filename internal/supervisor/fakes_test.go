package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/quotesync/internal/connection"
	"github.com/rickgao/quotesync/internal/model"
)

var (
	aapl = model.WatchedSymbol{Symbol: "AAPL", Name: "Apple Inc.", Market: model.MarketStocks}
	msft = model.WatchedSymbol{Symbol: "MSFT", Name: "Microsoft", Market: model.MarketStocks}
	btc  = model.WatchedSymbol{Symbol: "BTC-USD", Name: "Bitcoin", Market: model.MarketCrypto}
)

func quoteOf(s model.WatchedSymbol, price float64) model.Quote {
	return model.Quote{Symbol: s.Symbol, Name: s.Name, Market: string(s.Market), Price: price}
}

// fakePuller records calls and answers through respond. A non-nil gate
// blocks every call until it is closed.
type fakePuller struct {
	mu      sync.Mutex
	calls   []model.WatchSet
	respond func(n int, ws model.WatchSet) ([]model.Quote, error)
	gate    chan struct{}
}

func (p *fakePuller) FetchQuotes(ctx context.Context, ws model.WatchSet) ([]model.Quote, error) {
	p.mu.Lock()
	n := len(p.calls)
	p.calls = append(p.calls, ws.Clone())
	gate := p.gate
	respond := p.respond
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if respond == nil {
		return nil, nil
	}
	return respond(n, ws)
}

func (p *fakePuller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakePuller) call(i int) model.WatchSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[i]
}

// fakeClient is an in-memory connection.Client.
type fakeClient struct {
	gate       chan struct{}
	connectErr error
	messages   chan connection.TimestampedMessage
	errs       chan error

	mu        sync.Mutex
	connected bool
	closed    bool
	sent      [][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		messages: make(chan connection.TimestampedMessage, 16),
		errs:     make(chan error, 1),
	}
}

func (c *fakeClient) Connect(ctx context.Context) error {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.connectErr != nil {
		return c.connectErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return connection.ErrAlreadyClosed
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	return nil
}

func (c *fakeClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return connection.ErrNotConnected
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeClient) Messages() <-chan connection.TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                         { return c.errs }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) deliver(data string) {
	c.messages <- connection.TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now()}
}

func (c *fakeClient) fail(err error) {
	c.errs <- err
}

func (c *fakeClient) rawSent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeClient) subscriptions(t *testing.T) []connection.SubscriptionMessage {
	t.Helper()
	var out []connection.SubscriptionMessage
	for _, raw := range c.rawSent() {
		var msg connection.SubscriptionMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("sent message is not a subscription: %s", raw)
		}
		out = append(out, msg)
	}
	return out
}

// fakeStream hands out fakeClients and keeps every one it created.
type fakeStream struct {
	mu         sync.Mutex
	clients    []*fakeClient
	gate       chan struct{}
	connectErr error
}

func (s *fakeStream) factory(*slog.Logger) connection.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := newFakeClient()
	c.gate = s.gate
	c.connectErr = s.connectErr
	s.clients = append(s.clients, c)
	return c
}

func (s *fakeStream) setConnectErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectErr = err
}

func (s *fakeStream) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *fakeStream) client(i int) *fakeClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[i]
}

func testConfig() Config {
	return Config{
		RefreshInterval: time.Hour,
		Reconnect:       ReconnectConfig{Enabled: false},
	}
}

func newTestEngine(t *testing.T, cfg Config, ws model.WatchSet, puller Puller, stream *fakeStream) *Engine {
	t.Helper()

	e, err := New(cfg, ws, puller, WithClientFactory(stream.factory))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(e.Teardown)
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func priceOf(e *Engine, symbol string) float64 {
	q, ok := e.Snapshot().Get(symbol)
	if !ok {
		return -1
	}
	return q.Price
}

func symbolsOf(ws model.WatchSet) []string {
	return ws.Symbols()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
