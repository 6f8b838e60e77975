package config

import (
	"time"

	"github.com/rickgao/quotesync/internal/model"
)

// Config is the root configuration for a quotesync instance.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Engine    EngineConfig    `yaml:"engine"`
	Stream    StreamConfig    `yaml:"stream"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Publish   PublishConfig   `yaml:"publish"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig holds quote API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`    // e.g. http://localhost:8000
	PathPrefix string        `yaml:"path_prefix"` // REST prefix, e.g. /api
	APIKey     string        `yaml:"api_key"`     // Optional bearer token
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"` // nil = default, 0 disables retries
}

// Retries returns the configured retry count (default DefaultMaxRetries).
func (a APIConfig) Retries() int {
	if a.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *a.MaxRetries
}

// EngineConfig holds quote synchronization settings.
type EngineConfig struct {
	RefreshInterval time.Duration  `yaml:"refresh_interval"`
	Watchlist       model.WatchSet `yaml:"watchlist"` // Empty = server default quotes
}

// StreamConfig holds push channel settings.
type StreamConfig struct {
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

// ReconnectConfig controls re-opening the push channel after it is lost.
// Enabled is a pointer so an explicit false survives applyDefaults.
type ReconnectConfig struct {
	Enabled   *bool         `yaml:"enabled"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// IsEnabled reports whether reconnection is on (default true).
func (r ReconnectConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// RecorderConfig holds quote history settings.
type RecorderConfig struct {
	Driver        string        `yaml:"driver"` // "none", "postgres" or "sqlite"
	Postgres      DBConfig      `yaml:"postgres"`
	SQLitePath    string        `yaml:"sqlite_path"`
	Retention     time.Duration `yaml:"retention"`
	PruneSchedule string        `yaml:"prune_schedule"` // cron spec
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PublishConfig holds Redis fan-out settings. Empty Addr disables publishing.
type PublishConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	Key      string `yaml:"key"`
}

// HTTPConfig holds the health/debug server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
