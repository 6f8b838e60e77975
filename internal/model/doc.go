// Package model defines shared data types used across quotesync.
//
// Conventions:
//   - Prices and volumes: float64, as delivered by the quote API
//   - Symbols: upstream tickers, unchanged (e.g. "AAPL", "BTC/USDT", "^GSPC")
//   - A WatchSet is ordered; order is display order only
package model
