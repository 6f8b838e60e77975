package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/quotesync/internal/api"
	"github.com/rickgao/quotesync/internal/config"
	"github.com/rickgao/quotesync/internal/connection"
	"github.com/rickgao/quotesync/internal/database"
	"github.com/rickgao/quotesync/internal/publish"
	"github.com/rickgao/quotesync/internal/recorder"
	"github.com/rickgao/quotesync/internal/supervisor"
	"github.com/rickgao/quotesync/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults only when empty)")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	// Variables already set in the environment win over the file.
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting quotesync",
		"version", version.String(),
		"config", *configPath,
		"api_url", cfg.API.BaseURL,
		"symbols", len(cfg.Engine.Watchlist),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("quotesync failed", "error", err)
		os.Exit(1)
	}

	logger.Info("quotesync stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Quote history
	rec, err := openRecorder(ctx, cfg.Recorder, logger)
	if err != nil {
		return err
	}
	defer rec.Close()

	writer := recorder.NewWriter(recorder.DefaultWriterConfig(), rec, logger.With("component", "writer"))
	if err := writer.Start(ctx); err != nil {
		return fmt.Errorf("start writer: %w", err)
	}
	defer stopWithTimeout(logger, "writer", writer.Stop)

	if cfg.Recorder.Driver != "none" {
		pruner, err := recorder.NewPruner(rec, cfg.Recorder.PruneSchedule, cfg.Recorder.Retention, logger.With("component", "pruner"))
		if err != nil {
			return err
		}
		pruner.Start()
		defer pruner.Stop()
	}

	// Redis fan-out
	var pub *publish.Publisher
	if cfg.Publish.Addr != "" {
		rdb := publish.NewClient(cfg.Publish.Addr, cfg.Publish.Password, cfg.Publish.DB)
		defer rdb.Close()

		pub = publish.New(rdb, publish.Config{
			Channel: cfg.Publish.Channel,
			Key:     cfg.Publish.Key,
		}, logger.With("component", "publisher"))
		if err := pub.Ping(ctx); err != nil {
			logger.Warn("redis not reachable yet", "addr", cfg.Publish.Addr, "error", err)
		}
		if err := pub.Start(ctx); err != nil {
			return fmt.Errorf("start publisher: %w", err)
		}
		defer stopWithTimeout(logger, "publisher", pub.Stop)
	}

	// Engine
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	engine.Subscribe(func(snap supervisor.Snapshot) {
		writer.Observe(snap.Snapshot)
		if pub != nil {
			pub.Observe(snap)
		}
	})

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer engine.Teardown()

	// Health server
	var redisPing pinger
	if pub != nil {
		redisPing = pub
	}
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           newHealthHandler(engine, rec, redisPing, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.HTTP.Port)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("quotesync running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.HTTP.Port),
	)

	return g.Wait()
}

// newEngine builds the pull client, push configuration and engine.
func newEngine(cfg *config.Config, logger *slog.Logger) (*supervisor.Engine, error) {
	apiClient := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		api.WithLogger(logger.With("component", "api")),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.Retries(), time.Second),
		api.WithPathPrefix(cfg.API.PathPrefix),
	)

	streamURL, err := connection.StreamURL(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("derive stream url: %w", err)
	}

	engineCfg := supervisor.Config{
		RefreshInterval: cfg.Engine.RefreshInterval,
		Stream: connection.ClientConfig{
			URL:          streamURL,
			APIKey:       cfg.API.APIKey,
			PingTimeout:  cfg.Stream.PingTimeout,
			WriteTimeout: cfg.Stream.WriteTimeout,
			BufferSize:   cfg.Stream.BufferSize,
		},
		Reconnect: supervisor.ReconnectConfig{
			Enabled:   cfg.Reconnect.IsEnabled(),
			BaseDelay: cfg.Reconnect.BaseDelay,
			MaxDelay:  cfg.Reconnect.MaxDelay,
		},
	}

	logger.Info("engine configured",
		"stream_url", streamURL,
		"refresh_interval", engineCfg.RefreshInterval,
		"reconnect", engineCfg.Reconnect.Enabled,
	)

	return supervisor.New(engineCfg, cfg.Engine.Watchlist, apiClient,
		supervisor.WithLogger(logger.With("component", "engine")),
	)
}

// openRecorder opens and migrates the configured history backend.
func openRecorder(ctx context.Context, cfg config.RecorderConfig, logger *slog.Logger) (recorder.Recorder, error) {
	var rec recorder.Recorder

	switch cfg.Driver {
	case "sqlite":
		r, err := recorder.NewSQLiteRecorder(cfg.SQLitePath, logger.With("component", "recorder"))
		if err != nil {
			return nil, err
		}
		rec = r
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Postgres, logger.With("component", "database"))
		if err != nil {
			return nil, fmt.Errorf("connect recorder database: %w", err)
		}
		rec = recorder.NewPostgresRecorder(pool)
	default:
		return recorder.NewNoopRecorder(), nil
	}

	if err := rec.Migrate(ctx); err != nil {
		rec.Close()
		return nil, err
	}

	logger.Info("quote recorder ready", "driver", cfg.Driver, "retention", cfg.Retention)
	return rec, nil
}

// stopWithTimeout stops a component and logs a failure to drain in time.
func stopWithTimeout(logger *slog.Logger, component string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := stop(ctx); err != nil {
		logger.Error("failed to stop "+component, "error", err)
	}
}
