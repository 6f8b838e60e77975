package supervisor

import (
	"math/rand/v2"
	"time"

	"github.com/rickgao/quotesync/internal/connection"
)

// Config holds engine configuration.
type Config struct {
	// RefreshInterval is the periodic pull interval while polling.
	RefreshInterval time.Duration

	// Stream configures push clients created by the default factory.
	Stream connection.ClientConfig

	Reconnect ReconnectConfig
}

// ReconnectConfig controls re-opening the push channel after it is lost.
type ReconnectConfig struct {
	Enabled   bool
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 30 * time.Second,
		Stream:          connection.DefaultClientConfig(),
		Reconnect: ReconnectConfig{
			Enabled:   true,
			BaseDelay: time.Second,
			MaxDelay:  60 * time.Second,
		},
	}
}

// backoff returns the un-jittered delay before reconnect attempt n (0-based).
func (c ReconnectConfig) backoff(attempt int) time.Duration {
	wait := c.BaseDelay
	if wait <= 0 {
		wait = time.Second
	}
	for i := 0; i < attempt && wait < c.MaxDelay; i++ {
		wait *= 2
	}
	if c.MaxDelay > 0 && wait > c.MaxDelay {
		wait = c.MaxDelay
	}
	return wait
}

// Delay returns the jittered delay before reconnect attempt n, somewhere in
// [backoff/2, backoff].
func (c ReconnectConfig) Delay(attempt int) time.Duration {
	wait := c.backoff(attempt)
	half := wait / 2
	if half <= 0 {
		return wait
	}
	return half + time.Duration(rand.Int64N(int64(half)+1))
}
