// Package store holds the latest quote per watched symbol.
//
// The store is written only by the supervisor. Every delivered batch replaces
// the contents wholesale: symbols missing from a batch are dropped even if
// they are still watched. Readers get immutable Snapshot copies.
package store
