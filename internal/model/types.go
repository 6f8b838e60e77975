package model

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Watch Set
// -----------------------------------------------------------------------------

// Market identifies the asset class a symbol trades in.
type Market string

const (
	MarketStocks      Market = "stocks"
	MarketCrypto      Market = "crypto"
	MarketForex       Market = "forex"
	MarketFutures     Market = "futures"
	MarketCommodities Market = "commodities"
	MarketIndices     Market = "indices"
)

// Markets lists every supported market in display order.
var Markets = []Market{
	MarketStocks,
	MarketCrypto,
	MarketForex,
	MarketFutures,
	MarketCommodities,
	MarketIndices,
}

// Valid reports whether m is one of the supported markets.
func (m Market) Valid() bool {
	for _, known := range Markets {
		if m == known {
			return true
		}
	}
	return false
}

// WatchedSymbol is a single entry of a watch set.
type WatchedSymbol struct {
	Symbol string `json:"symbol" yaml:"symbol"` // Unique key
	Name   string `json:"name" yaml:"name"`     // Display name
	Market Market `json:"market" yaml:"market"`
}

// WatchSet is the ordered collection of tracked symbols.
type WatchSet []WatchedSymbol

// Errors
var (
	ErrEmptySymbol     = errors.New("empty symbol")
	ErrDuplicateSymbol = errors.New("duplicate symbol")
	ErrUnknownMarket   = errors.New("unknown market")
)

// Validate checks that every symbol is set, unique, and on a known market.
func (ws WatchSet) Validate() error {
	seen := make(map[string]struct{}, len(ws))
	for i, s := range ws {
		if s.Symbol == "" {
			return fmt.Errorf("watch set entry %d: %w", i, ErrEmptySymbol)
		}
		if !s.Market.Valid() {
			return fmt.Errorf("watch set entry %q: %w %q", s.Symbol, ErrUnknownMarket, s.Market)
		}
		if _, dup := seen[s.Symbol]; dup {
			return fmt.Errorf("watch set entry %q: %w", s.Symbol, ErrDuplicateSymbol)
		}
		seen[s.Symbol] = struct{}{}
	}
	return nil
}

// Symbols returns the symbol keys in order.
func (ws WatchSet) Symbols() []string {
	out := make([]string, len(ws))
	for i, s := range ws {
		out[i] = s.Symbol
	}
	return out
}

// Clone returns a copy that does not share the backing array.
func (ws WatchSet) Clone() WatchSet {
	if ws == nil {
		return nil
	}
	out := make(WatchSet, len(ws))
	copy(out, ws)
	return out
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// Quote is the latest price information for one symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Market        string  `json:"market"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	PrevClose     float64 `json:"prev_close"`
}

// QuotesResponse is the body returned by both pull endpoints.
type QuotesResponse struct {
	Quotes []Quote `json:"quotes"`
}
