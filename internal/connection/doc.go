// Package connection implements the push channel.
//
// The push channel:
//   - Holds one WebSocket connection to <api base>/ws/quotes
//   - Sends the full watch set as a subscription message on demand
//   - Delivers raw server messages and connection errors over channels
//   - Keeps the connection alive with pings and flags it stale when they stop
//
// Reconnection policy lives with the caller (see package supervisor).
package connection
