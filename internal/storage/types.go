package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled. An empty Path resolves
// under $XDG_STATE_HOME/jautolock.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Keep bounds the number of stored runs; 0 means DefaultKeep.
	Keep int
}

const DefaultKeep = 1000

func (c Config) keep() int {
	if c.Keep <= 0 {
		return DefaultKeep
	}
	return c.Keep
}

// Run records one finished task run.
type Run struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Command   string    `json:"command,omitempty"`
	Pid       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	ExitCode  int       `json:"exit_code"`
	Error     string    `json:"error,omitempty"`
}

func (r Run) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }
