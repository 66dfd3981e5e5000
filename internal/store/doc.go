// Package store provides SQLite-backed durable storage for ecmc run logs.
//
// The store is an append-only log with:
//   - Runs: one row per engine run, with its seed and configuration
//   - Events: every committed event (seq, time, handler, kind)
//   - Samples: the position of every node at every sampling event
//
// # Ordering
//
// All ordering uses seq INTEGER (the engine's logical clock), never wall
// time. Samples of one event keep their recording order, so two runs with
// the same seed read back identically.
//
// Event times are stored twice: as a REAL for ad-hoc queries and as the
// exact quotient and remainder pair the engine schedules with.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events and samples require their run
package store
