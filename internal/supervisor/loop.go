package supervisor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/quotesync/internal/connection"
	"github.com/rickgao/quotesync/internal/store"
)

// run is the engine goroutine. It owns the store, the push handle and the
// timers.
func (e *Engine) run() {
	e.loopID.Store(goroutineID())
	defer func() {
		close(e.done)
		e.helpers.Wait()
		close(e.released)
		e.logger.Info("engine torn down")
	}()

	e.bootstrap()

	for {
		var reconnectC <-chan time.Time
		if e.reconnectTimer != nil {
			reconnectC = e.reconnectTimer.C
		}

		select {
		case <-e.ctx.Done():
			e.shutdown()
			return

		case ev := <-e.events:
			if e.ctx.Err() != nil {
				continue
			}
			e.dispatch(ev)

		case <-reconnectC:
			e.reconnectTimer = nil
			e.dispatch(reconnectDue{})
		}
	}
}

// dispatch is the transition function.
func (e *Engine) dispatch(ev event) {
	switch ev := ev.(type) {
	case pullDone:
		e.handlePullDone(ev)
	case pushOpened:
		e.handlePushOpened(ev)
	case pushBatch:
		e.handlePushBatch(ev)
	case pushClosed:
		e.handlePushClosed(ev)
	case pollTick:
		e.handlePollTick()
	case reconnectDue:
		e.handleReconnectDue()
	case refreshCmd:
		e.handleRefresh()
	case updateWatchSetCmd:
		e.handleUpdateWatchSet(ev)
	default:
		e.logger.Warn("unknown event", "event", ev.eventName())
	}
}

// bootstrap issues the immediate pull, starts the timer and the first push
// attempt.
func (e *Engine) bootstrap() {
	e.setState(StateBootstrapping)
	e.store.SetLoading(true)

	e.startPull(true)
	if err := e.poller.Start(e.ctx, false); err != nil {
		e.logger.Error("failed to start poller", "error", err)
	}
	e.startPush()

	e.publish()
}

// shutdown releases every resource owned by the loop.
func (e *Engine) shutdown() {
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
		e.reconnectTimer = nil
	}
	if e.push != nil {
		e.push.close()
		e.push = nil
	}
	e.setPushPending(false)

	if err := e.poller.Stop(context.Background()); err != nil {
		e.logger.Warn("failed to stop poller", "error", err)
	}

	e.setState(StateClosed)
	e.publish()
}

func (e *Engine) startPull(bootstrap bool) {
	ws := e.watchSet.Clone()
	ctx := e.ctx

	e.helpers.Add(1)
	go func() {
		defer e.helpers.Done()

		quotes, err := e.puller.FetchQuotes(ctx, ws)
		e.post(ctx, pullDone{quotes: quotes, err: err, bootstrap: bootstrap})
	}()
}

func (e *Engine) startPush() {
	if e.push != nil {
		return
	}

	id := uuid.NewString()
	logger := e.logger.With("session", id)
	sess := &pushSession{
		id:     id,
		client: e.newClient(logger),
		logger: logger,
	}

	var ctx context.Context
	ctx, sess.cancel = context.WithCancel(e.ctx)

	e.push = sess
	e.setPushPending(true)

	e.helpers.Add(1)
	go func() {
		defer e.helpers.Done()
		sess.run(ctx, e.post)
	}()

	logger.Debug("opening push channel", "attempt", e.attempt)
}

func (e *Engine) handlePullDone(ev pullDone) {
	if ev.err != nil {
		e.logger.Warn("pull failed", "error", ev.err)
		e.store.SetError(ev.err.Error())
	} else {
		e.store.ApplyQuotes(ev.quotes, store.SourcePull)
		e.logger.Debug("pull applied", "quotes", len(ev.quotes))
	}

	if ev.bootstrap && e.state == StateBootstrapping {
		e.setState(StatePolling)
	}

	e.publish()
}

func (e *Engine) handlePushOpened(ev pushOpened) {
	if ev.session != e.push {
		return
	}

	e.setPushPending(false)
	e.attempt = 0

	if err := e.poller.Stop(context.Background()); err != nil {
		e.logger.Warn("failed to stop poller", "error", err)
	}

	if err := e.subscribe(); err != nil {
		e.handlePushLoss(err)
		return
	}

	e.setState(StateStreaming)
	e.logger.Info("push channel open, polling suspended", "session", ev.session.id)
	e.publish()
}

func (e *Engine) handlePushBatch(ev pushBatch) {
	if ev.session != e.push || e.state != StateStreaming {
		return
	}

	quotes, err := connection.ParseQuotesMessage(ev.data)
	if err != nil {
		e.logger.Debug("dropping push message", "error", err)
		return
	}

	e.store.ApplyQuotes(quotes, store.SourcePush)
	e.publish()
}

func (e *Engine) handlePushClosed(ev pushClosed) {
	if ev.session != e.push {
		return
	}
	e.handlePushLoss(ev.err)
}

// handlePushLoss discards the push handle and falls back to polling. Known
// quotes are kept.
func (e *Engine) handlePushLoss(err error) {
	sess := e.push
	e.push = nil
	sess.close()
	e.setPushPending(false)

	e.logger.Warn("push channel lost", "session", sess.id, "error", err)

	if e.state == StateStreaming {
		e.setState(StatePolling)
	}
	if !e.poller.Active() {
		if err := e.poller.Start(e.ctx, true); err != nil {
			e.logger.Error("failed to resume poller", "error", err)
		}
	}

	e.scheduleReconnect()
	e.publish()
}

func (e *Engine) scheduleReconnect() {
	if !e.cfg.Reconnect.Enabled {
		e.logger.Info("push reconnect disabled, continuing with polling")
		return
	}

	delay := e.cfg.Reconnect.Delay(e.attempt)
	e.attempt++
	e.reconnectTimer = time.NewTimer(delay)

	e.logger.Info("scheduling push reconnect", "attempt", e.attempt, "delay", delay)
}

func (e *Engine) handlePollTick() {
	// A tick queued before the timer was stopped.
	if e.state == StateStreaming {
		return
	}
	e.startPull(false)
}

func (e *Engine) handleReconnectDue() {
	if e.push != nil {
		return
	}
	e.startPush()
	e.publish()
}

func (e *Engine) handleRefresh() {
	e.startPull(false)
	e.resubscribe()
}

func (e *Engine) handleUpdateWatchSet(ev updateWatchSetCmd) {
	e.setWatchSet(ev.watchSet)
	e.logger.Info("watch set updated", "symbols", len(ev.watchSet))

	e.resubscribe()
	e.startPull(false)
	e.publish()
}

// resubscribe resends the full subscription while streaming.
func (e *Engine) resubscribe() {
	if e.state != StateStreaming {
		return
	}
	if err := e.subscribe(); err != nil {
		e.handlePushLoss(err)
	}
}

// subscribe sends the full current watch set on the push channel.
func (e *Engine) subscribe() error {
	data, err := connection.NewSubscription(e.watchSet).Encode()
	if err != nil {
		return err
	}
	if err := e.push.client.Send(data); err != nil {
		return err
	}

	e.push.logger.Debug("subscription sent", "symbols", e.watchSet.Symbols())
	return nil
}
