package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"jautolock/internal/clock"
	"jautolock/internal/config"
	"jautolock/internal/control"
	"jautolock/internal/idle"
)

type recordingNotifier struct {
	mu     sync.Mutex
	states []string
}

func (n *recordingNotifier) Notify(state string) error {
	n.mu.Lock()
	n.states = append(n.states, state)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) has(state string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.states {
		if s == state {
			return true
		}
	}
	return false
}

type harness struct {
	app    *App
	clock  *clock.Manual
	idle   *idle.Static
	notify *recordingNotifier
}

const baseConfig = `
logging:
  level: debug
  console: false
control:
  enabled: false
runner:
  terminate_on_exit: true
`

func newHarness(t *testing.T, extra string) *harness {
	t.Helper()
	dir := t.TempDir()
	body := strings.ReplaceAll(baseConfig+extra, "$DIR", dir)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	h := &harness{
		clock:  clock.NewManual(1000 * time.Second),
		idle:   idle.NewStatic(0),
		notify: &recordingNotifier{},
	}
	a, err := New(Options{ConfigPath: path, Clock: h.clock, Source: h.idle, Notifier: h.notify})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.app = a
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.app.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.app.Stop(ctx, StopUnknown)
	})
}

func (h *harness) send(t *testing.T, cmd control.Command) (control.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.app.Dispatch(ctx, cmd)
}

func (h *harness) status(t *testing.T) *control.Status {
	t.Helper()
	res, err := h.send(t, control.Command{Kind: control.KindStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Status == nil {
		t.Fatal("status: no snapshot")
	}
	return res.Status
}

func taskStatus(t *testing.T, st *control.Status, name string) control.TaskStatus {
	t.Helper()
	for _, ts := range st.Tasks {
		if ts.Name == name {
			return ts
		}
	}
	t.Fatalf("task %q missing from status", name)
	return control.TaskStatus{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManualFire(t *testing.T) {
	t.Parallel()
	h := newHarness(t, `
tasks:
  - name: lock
    time: 60
    command: sleep 30
`)
	h.start(t)

	res, err := h.send(t, control.Command{Kind: control.KindNow, Arg: "lock"})
	if err != nil {
		t.Fatalf("now lock: %v", err)
	}
	if res.Text != "Task fired." {
		t.Fatalf("reply = %q", res.Text)
	}

	if _, err := h.send(t, control.Command{Kind: control.KindNow, Arg: "lock"}); !errors.Is(err, control.ErrTaskRunning) {
		t.Fatalf("second fire err = %v, want ErrTaskRunning", err)
	}
	if _, err := h.send(t, control.Command{Kind: control.KindNow, Arg: "nope"}); !errors.Is(err, control.ErrUnknownTask) {
		t.Fatalf("unknown task err = %v, want ErrUnknownTask", err)
	}

	st := h.status(t)
	ts := taskStatus(t, st, "lock")
	if !ts.Running || ts.Pid == 0 {
		t.Fatalf("lock status = %+v, want running", ts)
	}
	if st.LastFired != 60*time.Second {
		t.Fatalf("last fired = %v, want 60s", st.LastFired)
	}
}

func TestBusyUnbusy(t *testing.T) {
	t.Parallel()
	h := newHarness(t, `
tasks:
  - name: lock
    time: 60
    command: sleep 30
`)
	h.start(t)

	res, err := h.send(t, control.Command{Kind: control.KindBusy})
	if err != nil || res.Text != "You're assumed to be busy." {
		t.Fatalf("busy = %q, %v", res.Text, err)
	}
	if st := h.status(t); !st.Busy {
		t.Fatal("status should report busy")
	}
	if !h.notify.has("STATUS=busy override active") {
		t.Fatal("busy status line not sent")
	}

	// A long idle streak while busy must not fire anything.
	h.clock.Advance(10 * time.Minute)
	h.idle.Set(10 * time.Minute)
	if st := h.status(t); taskStatus(t, st, "lock").Running {
		t.Fatal("task fired while busy")
	}

	res, err = h.send(t, control.Command{Kind: control.KindUnbusy})
	if err != nil || res.Text != "You're no longer assumed to be busy." {
		t.Fatalf("unbusy = %q, %v", res.Text, err)
	}
	h.status(t)
	if st := h.status(t); st.Busy || taskStatus(t, st, "lock").Running {
		t.Fatalf("after unbusy: busy=%v running=%v", st.Busy, taskStatus(t, st, "lock").Running)
	}
}

func TestIdleStreakFiresTask(t *testing.T) {
	t.Parallel()
	h := newHarness(t, `
tasks:
  - name: lock
    time: 60
    command: sleep 30
  - name: suspend
    time: 10m
    command: sleep 30
`)
	h.start(t)

	// Answered after the first cycle has established the baseline.
	st := h.status(t)
	if st.NextWake != 60*time.Second {
		t.Fatalf("next wake = %v, want 60s", st.NextWake)
	}

	h.clock.Advance(61 * time.Second)
	h.idle.Set(61 * time.Second)
	h.status(t) // wakes the loop; the cycle runs after this reply

	st = h.status(t)
	if !taskStatus(t, st, "lock").Running {
		t.Fatal("lock should have fired")
	}
	if taskStatus(t, st, "suspend").Running {
		t.Fatal("suspend fired early")
	}
}

func TestExitCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.start(t)

	res, err := h.send(t, control.Command{Kind: control.KindExit})
	if err != nil || res.Text != "Will exit." {
		t.Fatalf("exit = %q, %v", res.Text, err)
	}

	select {
	case <-h.app.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop after exit")
	}
	if got := h.app.Reason(); got != StopExitCommand {
		t.Fatalf("reason = %q, want %q", got, StopExitCommand)
	}
	if _, err := h.send(t, control.Command{Kind: control.KindBusy}); !errors.Is(err, control.ErrStopping) {
		t.Fatalf("command after exit err = %v, want ErrStopping", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.app.Stop(ctx, h.app.Reason()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !h.notify.has("STOPPING=1") || !h.notify.has("READY=1") {
		t.Fatal("READY/STOPPING not reported")
	}
}

func TestIdleErrorIsFatal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, `
tasks:
  - name: lock
    time: 60
    command: "true"
`)
	h.idle.Fail(errors.New("display gone"))
	h.start(t)

	select {
	case <-h.app.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("daemon kept running after idle query error")
	}
	var qe *idle.QueryError
	if !errors.As(h.app.Err(), &qe) {
		t.Fatalf("Err = %v, want *idle.QueryError", h.app.Err())
	}
	if got := h.app.Reason(); got != StopFatalError {
		t.Fatalf("reason = %q", got)
	}
}

func TestIdleErrorAssumeActive(t *testing.T) {
	t.Parallel()
	h := newHarness(t, `
idle:
  on_error: assume_active
tasks:
  - name: lock
    time: 60
    command: sleep 30
`)
	h.idle.Fail(errors.New("display gone"))
	h.start(t)

	h.clock.Advance(5 * time.Minute)
	h.status(t)
	st := h.status(t)
	if taskStatus(t, st, "lock").Running {
		t.Fatal("nothing should fire while idle reads as zero")
	}
	if h.app.Err() != nil {
		t.Fatalf("Err = %v", h.app.Err())
	}
}

func TestFinishedRunsAreRecorded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, `
storage:
  driver: file
  path: $DIR/runs.jsonl
tasks:
  - name: notify
    time: 30
    command: exit 2
`)
	h.start(t)

	if _, err := h.send(t, control.Command{Kind: control.KindNow, Arg: "notify"}); err != nil {
		t.Fatalf("now: %v", err)
	}

	waitFor(t, "recorded run", func() bool {
		st := h.status(t)
		return len(st.Runs) == 1 && !taskStatus(t, st, "notify").Running
	})
	run := h.status(t).Runs[0]
	if run.Task != "notify" || run.ExitCode != 2 || run.ID == "" {
		t.Fatalf("run = %+v", run)
	}
}

func TestApplyConfigReplacesTasks(t *testing.T) {
	t.Parallel()
	h := newHarness(t, `
tasks:
  - name: lock
    time: 60
    command: i3lock
`)
	cfg := config.Default()
	next := &cfg
	next.Logging.Console = false
	next.Control.Enabled = false
	next.Runner.TerminateOnExit = true
	next.Tasks = []config.TaskConfig{
		{Name: "lock", Time: config.Seconds(90), Command: "i3lock -n"},
		{Name: "suspend", Time: config.Seconds(600), Command: "systemctl suspend"},
	}

	h.app.applyConfig(next)

	if len(h.app.tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(h.app.tasks))
	}
	if got := h.app.tasks.Find("lock").Threshold; got != 90*time.Second {
		t.Fatalf("lock threshold = %v", got)
	}
	if h.app.cfg != next {
		t.Fatal("current config not swapped")
	}
}
