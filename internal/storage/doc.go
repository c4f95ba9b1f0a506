// Package storage persists the task failure journal.
//
// Two drivers exist:
//   - "file": append-only JSON Lines
//   - "sqlite": a SQLite database (modernc.org/sqlite, pure Go)
//
// The journal is diagnostic only. Nothing feeds it back into a task.
package storage
