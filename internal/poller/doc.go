// Package poller implements the periodic pull timer.
//
// The poller:
//   - Fires a tick every refresh interval (default: 30s)
//   - Can fire its first tick immediately when resumed after push loss
//   - Is suspended while the push channel is authoritative
//   - Leaves the actual pull to its handler
package poller
