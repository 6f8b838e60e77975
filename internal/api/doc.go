// Package api provides the REST client for the quote API (the pull channel).
//
// Endpoints (relative to base URL + path prefix):
//   - GET  /dashboard/quotes[?market=]  server-default watch set
//   - POST /dashboard/quotes            explicit watch set, JSON array body
//
// Both return {"quotes": [...]}. Failed calls surface as errors matching
// ErrTransport; the caller decides how to record them.
package api
