// Package database provides the SQLite store behind glimpse sessions.
//
// It holds three tables:
//   - sessions: one row per opened folder, keyed by [SessionID]
//   - labels: one user tag per (session, filename); clearing a tag deletes the row
//   - thumbnail_cache: a secondary index of generated thumbnails and previews
//
// Writes are single-statement upserts and every operation holds the store
// mutex, so concurrent writers to one key always leave one of their values.
// The database runs in WAL mode with a busy timeout.
package database
