// Package storage persists purchases, processed webhook deliveries and
// notifier dedup state.
//
// Drivers:
//   - "file": JSON Lines journals with periodic snapshots
//   - "sqlite": a single SQLite database file (modernc.org/sqlite)
package storage
