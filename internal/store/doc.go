// Package store provides SQLite-backed run history.
//
// Every `conformer run --db` appends one run:
//   - runs: one row per run with its totals
//   - scenario_results: one row per scenario, with the trace and notes as JSON
//   - failures: one row per failure, queryable by kind
//
// # Ordering
//
//   - Scenarios and failures keep declaration order via their idx columns
//   - Runs list newest first by started_at, ties broken by id
//
// Writes are idempotent on run id: writing the same report twice stores it
// once.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
