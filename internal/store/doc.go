// Package store provides SQLite-backed run history for score and
// conformance runs.
//
// Every run is one row in runs, keyed by a UUIDv7 so that ordering by id
// is ordering by creation time, plus one row in score_runs or
// conformance_runs holding the headline numbers. The full result is kept
// as canonical JSON next to its domain-separated SHA-256 digest, so two
// runs with identical outcomes have identical report_digest values.
//
// Connections run in WAL mode with foreign keys enforced. schema.sql is
// applied on every Open and stamps PRAGMA user_version; a database with a
// newer stamp is refused.
package store
