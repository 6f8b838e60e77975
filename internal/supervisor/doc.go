// Package supervisor implements the quote synchronization engine.
//
// The Engine decides at any moment whether quotes come from the pull channel
// (REST, on a periodic timer) or the push channel (websocket), keeps both
// consistent with the current watch set, and owns the QuoteStore.
//
// State machine:
//
//	BOOTSTRAPPING --immediate pull settles--> POLLING
//	BOOTSTRAPPING|POLLING --push open--> STREAMING (timer stopped, subscription sent)
//	STREAMING --push close/error--> POLLING (timer resumed with an immediate tick)
//	any --Teardown--> CLOSED
//
// All state lives on a single goroutine that consumes tagged events. Pulls
// and push dials run on helper goroutines and report back as events, so the
// transition logic can be driven by fake channels in tests.
//
// After a push loss the engine re-opens the push channel with exponential
// backoff unless reconnect is disabled, in which case it keeps polling for the
// rest of its life.
package supervisor
