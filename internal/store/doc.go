// Package store provides the SQLite-backed package registry.
//
// Each successful compile registers the emitted package under its namespace
// path. The registry hands out the integer version the driver returns:
//   - an unchanged source hash, written by a compatible compiler, keeps the
//     latest version
//   - anything else allocates latest+1
//
// Rows are never updated or deleted. Ordering uses the seq column (a logical
// counter), never wall-clock time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Source and manifest hashes are computed by internal/ir.
package store
