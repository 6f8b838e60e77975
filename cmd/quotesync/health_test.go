package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/store"
	"github.com/rickgao/quotesync/internal/supervisor"
)

type stubEngine struct {
	snap supervisor.Snapshot
}

func (s stubEngine) Snapshot() supervisor.Snapshot { return s.snap }

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

func snapshotIn(state supervisor.ConnectionState, errMsg string) supervisor.Snapshot {
	return supervisor.Snapshot{
		Snapshot: store.Snapshot{
			Quotes: []model.Quote{
				{Symbol: "AAPL", Market: "stocks", Price: 150},
				{Symbol: "BTC", Market: "crypto", Price: 60000},
			},
			Error:   errMsg,
			Source:  store.SourcePull,
			Version: 3,
		},
		State: state,
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		snap       supervisor.Snapshot
		rec        pinger
		publisher  pinger
		wantStatus string
		wantCode   int
	}{
		{
			name:       "streaming",
			snap:       snapshotIn(supervisor.StateStreaming, ""),
			rec:        stubPinger{},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name:       "polling",
			snap:       snapshotIn(supervisor.StatePolling, ""),
			rec:        stubPinger{},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name:       "streaming with error",
			snap:       snapshotIn(supervisor.StateStreaming, "Failed to fetch quotes"),
			rec:        stubPinger{},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name:       "closed",
			snap:       snapshotIn(supervisor.StateClosed, ""),
			rec:        stubPinger{},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "recorder down",
			snap:       snapshotIn(supervisor.StateStreaming, ""),
			rec:        stubPinger{err: errors.New("database is locked")},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "redis down",
			snap:       snapshotIn(supervisor.StateStreaming, ""),
			rec:        stubPinger{},
			publisher:  stubPinger{err: errors.New("connection refused")},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name:       "redis up",
			snap:       snapshotIn(supervisor.StateStreaming, ""),
			rec:        stubPinger{},
			publisher:  stubPinger{},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHealthHandler(stubEngine{snap: tt.snap}, tt.rec, tt.publisher, slog.Default())

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tt.wantCode)
			}

			var body struct {
				Status     string                     `json:"status"`
				Components map[string]json.RawMessage `json:"components"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if _, ok := body.Components["engine"]; !ok {
				t.Error("missing engine component")
			}
			if _, ok := body.Components["redis"]; ok != (tt.publisher != nil) {
				t.Errorf("redis component present = %v, want %v", ok, tt.publisher != nil)
			}
		})
	}
}

func TestDebugQuotesHandler(t *testing.T) {
	h := newHealthHandler(stubEngine{snap: snapshotIn(supervisor.StateStreaming, "")}, stubPinger{}, nil, slog.Default())

	tests := []struct {
		name        string
		query       string
		wantCode    int
		wantSymbols []string
	}{
		{name: "all", query: "", wantCode: http.StatusOK, wantSymbols: []string{"AAPL", "BTC"}},
		{name: "by market", query: "?market=crypto", wantCode: http.StatusOK, wantSymbols: []string{"BTC"}},
		{name: "by symbol", query: "?symbol=AAPL", wantCode: http.StatusOK, wantSymbols: []string{"AAPL"}},
		{name: "no match", query: "?symbol=MSFT", wantCode: http.StatusOK, wantSymbols: []string{}},
		{name: "unknown market", query: "?market=bonds", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/quotes"+tt.query, nil))

			if rr.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var snap supervisor.Snapshot
			if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if snap.State != supervisor.StateStreaming {
				t.Errorf("state = %v, want STREAMING", snap.State)
			}
			if len(snap.Quotes) != len(tt.wantSymbols) {
				t.Fatalf("got %d quotes, want %d", len(snap.Quotes), len(tt.wantSymbols))
			}
			for i, q := range snap.Quotes {
				if q.Symbol != tt.wantSymbols[i] {
					t.Errorf("quotes[%d] = %s, want %s", i, q.Symbol, tt.wantSymbols[i])
				}
			}
		})
	}
}
