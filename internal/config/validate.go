package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must be http or https, got %q", c.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url has no host: %q", c.API.BaseURL)
	}
	if c.API.PathPrefix != "" && !strings.HasPrefix(c.API.PathPrefix, "/") {
		return fmt.Errorf("api.path_prefix must start with /, got %q", c.API.PathPrefix)
	}
	if c.API.Retries() < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Engine.RefreshInterval <= 0 {
		return errors.New("engine.refresh_interval must be > 0")
	}
	if err := c.Engine.Watchlist.Validate(); err != nil {
		return fmt.Errorf("engine.watchlist: %w", err)
	}

	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Reconnect.BaseDelay > c.Reconnect.MaxDelay {
		return fmt.Errorf("reconnect.base_delay (%s) cannot exceed max_delay (%s)", c.Reconnect.BaseDelay, c.Reconnect.MaxDelay)
	}

	switch c.Recorder.Driver {
	case "none":
	case "sqlite":
		if c.Recorder.SQLitePath == "" {
			return errors.New("recorder.sqlite_path is required")
		}
	case "postgres":
		if err := c.Recorder.Postgres.validate("recorder.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("recorder.driver must be none, postgres or sqlite, got %q", c.Recorder.Driver)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
