package task

import (
	"errors"
	"time"
)

var (
	ErrRunning = errors.New("task already running")
	ErrStopped = errors.New("task runner stopped")
)

// Handle identifies one spawned run of a task. A task without a handle is
// not running.
type Handle struct {
	RunID     string
	Pid       int
	StartedAt time.Time
}

// Task is an idle-triggered command. Tasks are owned by the driver loop; the
// handle is only touched from that goroutine.
type Task struct {
	Name      string
	Threshold time.Duration
	Command   string

	handle *Handle
}

func (t *Task) Running() bool { return t.handle != nil }

// Handle returns a copy of the current run handle.
func (t *Task) Handle() (Handle, bool) {
	if t.handle == nil {
		return Handle{}, false
	}
	return *t.handle, true
}

// Attach marks t as running under h.
func (t *Task) Attach(h Handle) { t.handle = &h }

// Finish clears the handle if it still belongs to runID. Exits of runs that
// were superseded (e.g. after a reload) report false.
func (t *Task) Finish(runID string) bool {
	if t.handle == nil || t.handle.RunID != runID {
		return false
	}
	t.handle = nil
	return true
}

// Inherit carries the running handle of prev over to t.
func (t *Task) Inherit(prev *Task) {
	if prev == nil || prev.handle == nil {
		return
	}
	h := *prev.handle
	t.handle = &h
}

// List is the ordered task set from configuration.
type List []*Task

func (l List) Find(name string) *Task {
	for _, t := range l {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Replace returns next with running handles adopted from l by name.
func (l List) Replace(next List) List {
	for _, t := range next {
		t.Inherit(l.Find(t.Name))
	}
	return next
}

// Fired is the payload of eventbus.TaskFired.
type Fired struct {
	Task    string `json:"task"`
	Command string `json:"command"`
	Handle  Handle `json:"handle"`
}

// SpawnFailed is the payload of eventbus.TaskSpawnFailed.
type SpawnFailed struct {
	Task  string `json:"task"`
	Error string `json:"error"`
}

// Exit reports a reaped child. It is also the payload of eventbus.TaskExited.
type Exit struct {
	Task     string        `json:"task"`
	Command  string        `json:"command,omitempty"`
	RunID    string        `json:"run_id"`
	Pid      int           `json:"pid"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	ExitCode int           `json:"exit_code"`
	Err      error         `json:"-"`
}
