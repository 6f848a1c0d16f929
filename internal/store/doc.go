// Package store provides SQLite-backed durable state for the attendance poller.
//
// The store is the single source of truth for three relations:
//   - processed_events: event keys (device epochs) that have been applied,
//     at most once, ever
//   - presence: first-seen-today markers keyed by (day, person_id)
//   - meta: small key/value pairs (e.g. which day the ledger reflects)
//
// Idempotency is enforced at the SQL level: every write uses
// INSERT ... ON CONFLICT DO NOTHING, so a replayed write can never clobber
// a previously committed marker. MarkProcessed additionally reports whether
// the row was newly inserted, which is what the engine uses to decide if an
// event still needs to be folded.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
