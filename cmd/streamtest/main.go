// streamtest opens the quote push channel and prints every batch to the console.
// Usage: go run ./cmd/streamtest --config configs/quotesync.example.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/quotesync/internal/config"
	"github.com/rickgao/quotesync/internal/connection"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	streamURL, err := connection.StreamURL(cfg.API.BaseURL)
	if err != nil {
		logger.Error("invalid api base url", "error", err)
		os.Exit(1)
	}

	client := connection.NewClient(connection.ClientConfig{
		URL:          streamURL,
		APIKey:       cfg.API.APIKey,
		PingTimeout:  cfg.Stream.PingTimeout,
		WriteTimeout: cfg.Stream.WriteTimeout,
		BufferSize:   cfg.Stream.BufferSize,
	}, logger)

	logger.Info("connecting", "url", streamURL)
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	sub, err := connection.NewSubscription(cfg.Engine.Watchlist).Encode()
	if err != nil {
		logger.Error("failed to encode subscription", "error", err)
		os.Exit(1)
	}
	if err := client.Send(sub); err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}
	logger.Info("subscribed", "symbols", cfg.Engine.Watchlist.Symbols())

	var batches, dropped int
	stats := time.NewTicker(10 * time.Second)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("done", "batches", batches, "dropped", dropped)
			return

		case err := <-client.Errors():
			logger.Error("push channel lost", "error", err)
			return

		case <-stats.C:
			logger.Info("stats", "batches", batches, "dropped", dropped)

		case msg := <-client.Messages():
			quotes, err := connection.ParseQuotesMessage(msg.Data)
			if err != nil {
				dropped++
				logger.Debug("ignored message", "error", err, "bytes", len(msg.Data))
				continue
			}
			batches++

			if *verbose {
				out, _ := json.MarshalIndent(quotes, "", "  ")
				fmt.Printf("[%s] %s\n", msg.ReceivedAt.Format(time.RFC3339Nano), out)
				continue
			}
			for _, q := range quotes {
				fmt.Printf("[QUOTE] %-8s %-11s price=%.4f change=%+.4f (%+.2f%%)\n",
					q.Symbol, q.Market, q.Price, q.Change, q.ChangePercent)
			}
		}
	}
}
