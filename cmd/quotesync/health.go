package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/supervisor"
)

// snapshotter is the part of the engine the handlers read.
type snapshotter interface {
	Snapshot() supervisor.Snapshot
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newHealthHandler creates the HTTP handler for health checks and debugging.
// publisher may be nil.
func newHealthHandler(engine snapshotter, rec pinger, publisher pinger, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		degrade := func() {
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		// Engine
		snap := engine.Snapshot()
		health.Components["engine"] = map[string]any{
			"state":        snap.State,
			"push_pending": snap.PushPending,
			"quotes":       len(snap.Quotes),
			"source":       snap.Source,
			"version":      snap.Version,
			"error":        snap.Error,
		}
		switch snap.State {
		case supervisor.StateClosed, supervisor.StateIdle:
			health.Status = "unhealthy"
		case supervisor.StatePolling, supervisor.StateBootstrapping:
			degrade()
		}
		if snap.Error != "" {
			degrade()
		}

		// Recorder
		if err := rec.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["recorder"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["recorder"] = "connected"
		}

		// Publisher
		if publisher != nil {
			if err := publisher.Ping(ctx); err != nil {
				degrade()
				health.Components["redis"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["redis"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Debug("write health response", "error", err)
		}
	})

	mux.HandleFunc("/debug/quotes", func(w http.ResponseWriter, r *http.Request) {
		snap := engine.Snapshot()

		// Optional filters, same values as the quote API.
		market := model.Market(r.URL.Query().Get("market"))
		if market != "" && !market.Valid() {
			http.Error(w, "unknown market", http.StatusBadRequest)
			return
		}
		symbol := r.URL.Query().Get("symbol")
		if market != "" || symbol != "" {
			filtered := make([]model.Quote, 0, len(snap.Quotes))
			for _, q := range snap.Quotes {
				if market != "" && q.Market != string(market) {
					continue
				}
				if symbol != "" && q.Symbol != symbol {
					continue
				}
				filtered = append(filtered, q)
			}
			snap.Quotes = filtered
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			logger.Debug("write debug response", "error", err)
		}
	})

	return mux
}
