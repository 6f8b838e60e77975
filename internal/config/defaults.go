package config

import (
	"os"
	"time"
)

// EnvAPIURL names the environment variable consulted when api.base_url is empty.
const EnvAPIURL = "QUOTESYNC_API_URL"

// Default values for optional configuration fields.
const (
	DefaultAPIBaseURL         = "http://localhost:8000"
	DefaultPathPrefix         = "/api"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRefreshInterval    = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultStreamBufferSize   = 256
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultRecorderDriver     = "none"
	DefaultSQLitePath         = "quotes.db"
	DefaultRetention          = 7 * 24 * time.Hour
	DefaultPruneSchedule      = "@hourly"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultPublishChannel     = "quotes"
	DefaultPublishKey         = "quotes:latest"
	DefaultHTTPPort           = 8080
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = os.Getenv(EnvAPIURL)
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.PathPrefix == "" {
		c.API.PathPrefix = DefaultPathPrefix
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Engine defaults
	if c.Engine.RefreshInterval == 0 {
		c.Engine.RefreshInterval = DefaultRefreshInterval
	}

	// Stream defaults
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}

	// Recorder defaults
	if c.Recorder.Driver == "" {
		c.Recorder.Driver = DefaultRecorderDriver
	}
	if c.Recorder.SQLitePath == "" {
		c.Recorder.SQLitePath = DefaultSQLitePath
	}
	if c.Recorder.Retention == 0 {
		c.Recorder.Retention = DefaultRetention
	}
	if c.Recorder.PruneSchedule == "" {
		c.Recorder.PruneSchedule = DefaultPruneSchedule
	}
	applyDBDefaults(&c.Recorder.Postgres)

	// Publish defaults
	if c.Publish.Channel == "" {
		c.Publish.Channel = DefaultPublishChannel
	}
	if c.Publish.Key == "" {
		c.Publish.Key = DefaultPublishKey
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
