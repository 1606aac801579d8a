// Package store provides SQLite-backed durable storage for LAVA records.
//
// The store implements an append-only record set with:
//   - One table per entity (source lvals, labelsets, duas, attack points,
//     bugs, source modifications, builds, runs, source functions, calls)
//   - A named unique index over each keyed entity's natural-key tuple
//   - Intern operations (create-or-find) that make the unique index the
//     sole arbiter of duplicates
//
// # Critical Patterns
//
// Interning via unique index
//   - INSERT ... ON CONFLICT DO NOTHING followed by SELECT of the
//     surviving id, inside one transaction
//   - Safe under concurrent insertion on the same key: at most one record
//     per natural key ever exists, and racing losers are remapped to the
//     winner's identity
//
// Referential integrity at write time
//   - Every not-null reference is resolved inside the writing transaction
//     before the insert; a dangling reference aborts the write
//
// Ordered sequences in TEXT columns
//   - labels, viable_bytes, selected_bytes, and bugs store JSON arrays so
//     the unique indexes compare whole sequences with order preserved
//
// Deterministic scans
//   - Bulk scans ORDER BY the natural-key tuple (joining through reference
//     columns), so exports are stable across runs and databases
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
