// Package database provides the PostgreSQL connection pool used by the
// quote history recorder.
package database
