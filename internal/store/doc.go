// Package store provides a SQLite-backed record store and the query
// source that live assignments fetch from.
//
// Records are JSON documents grouped by collection and identified by a
// primary-key tuple (default: the "id" field). Writes notify subscribers
// through a Notifier with two topics: the collection name, and
// "<collection>:<key>" for the individual record.
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Every query orders by the requested fields and then the primary key
//   - Keyset cursors encode exactly those ordering values
//
// Logical Write Clock
//   - seq INTEGER increases on every put; never wall-clock time
//
// Canonical Storage
//   - data is canonical JSON (sorted keys, NFC strings, no floats)
package store
