package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines journal at Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Retention drops sqlite records older than this on periodic prune. 0 keeps everything.
	Retention time.Duration
}

// Failure records one failed task iteration.
// Keep it compact and schema-stable.
type Failure struct {
	At    time.Time `json:"at"`
	Task  string    `json:"task"`
	Error string    `json:"error"`
	Panic bool      `json:"panic,omitempty"`
	Stack string    `json:"stack,omitempty"`
}
