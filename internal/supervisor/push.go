package supervisor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/quotesync/internal/connection"
)

// pushSession is one push channel handle. Events carry their session so the
// run loop can ignore anything from a handle it already discarded.
type pushSession struct {
	id     string
	client connection.Client
	logger *slog.Logger
	cancel context.CancelFunc
}

// run dials and then pumps client events into the engine until ctx is
// canceled or the connection fails.
func (s *pushSession) run(ctx context.Context, post func(context.Context, event) bool) {
	if err := s.client.Connect(ctx); err != nil {
		post(ctx, pushClosed{session: s, err: fmt.Errorf("dial: %w", err)})
		return
	}
	if !post(ctx, pushOpened{session: s}) {
		return
	}

	messages := s.client.Messages()
	errs := s.client.Errors()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-messages:
			if !post(ctx, pushBatch{session: s, data: msg.Data, receivedAt: msg.ReceivedAt}) {
				return
			}
		case err := <-errs:
			post(ctx, pushClosed{session: s, err: err})
			return
		}
	}
}

// close discards the handle.
func (s *pushSession) close() {
	s.cancel()
	if err := s.client.Close(); err != nil {
		s.logger.Debug("push close error", "error", err)
	}
}
