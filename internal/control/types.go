package control

import (
	"context"
	"time"

	"jautolock/internal/storage"
)

// Dispatcher executes decoded commands. Implementations answer with the
// package errors (ErrUnknownTask, ErrTaskRunning, ErrStopping) so replies
// keep their wording and RPC codes.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) (Result, error)
}

type DispatcherFunc func(ctx context.Context, cmd Command) (Result, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// Result is the answer to a command. Status is set only for KindStatus.
type Result struct {
	Text   string
	Status *Status
}

type NameParams struct {
	Name string `json:"name"`
}

type MessageParams struct {
	Text string `json:"text"`
}

type Reply struct {
	Text string `json:"text"`
}

// Status is the daemon snapshot returned by daemon.status.
type Status struct {
	Pid        int           `json:"pid"`
	StartedAt  time.Time     `json:"started_at"`
	ConfigPath string        `json:"config_path,omitempty"`
	IdleSource string        `json:"idle_source"`
	Busy       bool          `json:"busy"`
	LastFired  time.Duration `json:"last_fired"`
	Offset     time.Duration `json:"offset"`
	NextWake   time.Duration `json:"next_wake"`
	Tasks      []TaskStatus  `json:"tasks"`
	Runs       []storage.Run `json:"runs,omitempty"`
}

type TaskStatus struct {
	Name      string        `json:"name"`
	Threshold time.Duration `json:"threshold"`
	Command   string        `json:"command"`
	Running   bool          `json:"running"`
	Pid       int           `json:"pid,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
}
