// Package store persists validation audits and rate-limiter events to
// SQLite. Every engine validation can be recorded as an audit row with
// its issues; the CLI reads them back for inspection.
//
// The database runs in WAL mode with a single writer connection, so
// concurrent readers never block a write and writes never race each
// other.
package store
