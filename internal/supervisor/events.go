package supervisor

import (
	"time"

	"github.com/rickgao/quotesync/internal/model"
)

// event is consumed by the run loop.
type event interface {
	eventName() string
}

// pullDone reports a settled pull.
type pullDone struct {
	quotes    []model.Quote
	err       error
	bootstrap bool
}

// pushOpened reports a successful push dial.
type pushOpened struct {
	session *pushSession
}

// pushBatch carries one raw push message.
type pushBatch struct {
	session    *pushSession
	data       []byte
	receivedAt time.Time
}

// pushClosed reports a failed dial, a remote close or a read error.
type pushClosed struct {
	session *pushSession
	err     error
}

// pollTick is a periodic pull timer fire.
type pollTick struct{}

// reconnectDue fires when the reconnect backoff has elapsed.
type reconnectDue struct{}

// refreshCmd forces one immediate pull and a resubscribe.
type refreshCmd struct{}

// updateWatchSetCmd replaces the watch set.
type updateWatchSetCmd struct {
	watchSet model.WatchSet
}

func (pullDone) eventName() string          { return "pull_done" }
func (pushOpened) eventName() string        { return "push_opened" }
func (pushBatch) eventName() string         { return "push_batch" }
func (pushClosed) eventName() string        { return "push_closed" }
func (pollTick) eventName() string          { return "poll_tick" }
func (reconnectDue) eventName() string      { return "reconnect_due" }
func (refreshCmd) eventName() string        { return "refresh" }
func (updateWatchSetCmd) eventName() string { return "update_watch_set" }
