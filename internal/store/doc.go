// Package store persists integrations and their OAuth tokens.
//
// Two implementations are provided: an in-memory store for tests and single
// process development, and a database/sql store that runs on SQLite
// (modernc.org/sqlite) or PostgreSQL (pgx). The SQL store encrypts tokens at
// rest when a key is configured.
//
// Read-modify-write cycles on one (user, app type) pair should run inside
// Locker.WithLock. Save additionally rejects stale writes via the Version
// field, so concurrent writers in different processes cannot silently
// overwrite each other.
package store
