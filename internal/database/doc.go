// Package database provides SQLite-based run history for probekit.
//
// This package implements the RunDB, which stores:
//   - Harness runs with their verdict counts and the full report
//   - One row per boundary observation, for querying overflows across runs
//
// The database is a single probekit.db file in the XDG data directory,
// opened through the CGO-free modernc.org/sqlite driver with WAL enabled and
// a single writer connection.
package database
