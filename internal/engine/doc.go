// Package engine implements the attendance synchronization loop.
//
// The engine is a single sequential worker. Each tick runs four phases:
//
//  1. Day check: compute the active day from the wall clock and the
//     rollover hour; if it differs from the stored pointer, or the ledger
//     file for it is missing, reload the roster, materialize a fresh
//     ledger, and re-derive Present rows from the store's presence markers.
//  2. Poll: open a terminal session and read the full attendance log.
//  3. Apply: fold each event, in timestamp order, into the store and the
//     ledger under at-most-once and first-seen-wins rules.
//  4. Sleep until the next tick.
//
// The next tick never starts before the previous apply phase finishes, so
// there is exactly one writer to the store and the ledger file.
// Cancellation is honored in the sleep between ticks; an apply phase in
// progress always completes its batch.
//
// Restart safety rests on two facts: every event key is recorded in the
// store before any presence logic runs, and every store write is an
// idempotent single-statement upsert. Re-polling the device log after a
// crash therefore re-applies nothing.
package engine
