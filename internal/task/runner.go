package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"jautolock/internal/eventbus"
	rtsup "jautolock/internal/runtime/supervisor"
	logx "jautolock/pkg/logx"

	"github.com/google/uuid"
)

type Config struct {
	// Shell runs each command as `<shell> -c <command>`.
	Shell string
	// TerminateOnExit sends SIGTERM to the process groups still running
	// when the runner is closed.
	TerminateOnExit bool
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Shell) == "" {
		c.Shell = "sh"
	}
	return c
}

// Runner spawns task commands as detached children and reports their exits.
type Runner struct {
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	exits chan Exit

	mu      sync.Mutex
	sup     *rtsup.Supervisor
	procs   map[string]*exec.Cmd // by run id
	stopped bool
}

func NewRunner(cfg Config, log logx.Logger, bus eventbus.Bus) *Runner {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Runner{
		cfg:   cfg.withDefaults(),
		log:   log.With(logx.String("comp", "task.runner")),
		bus:   bus,
		exits: make(chan Exit, 16),
		procs: map[string]*exec.Cmd{},
	}
}

// Start binds child waiters to ctx. Exits that cannot be delivered after
// ctx is done are dropped.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sup == nil {
		r.sup = rtsup.New(ctx, rtsup.WithLogger(r.log))
	}
}

// Exits delivers one Exit per reaped child.
func (r *Runner) Exits() <-chan Exit { return r.exits }

// Fire spawns t's command and records the handle on t. It never waits for
// the child.
func (r *Runner) Fire(t *Task) error {
	if t.Running() {
		r.log.Warn("task already running, not firing", logx.String("task", t.Name))
		return fmt.Errorf("%s: %w", t.Name, ErrRunning)
	}

	r.mu.Lock()
	if r.stopped || r.sup == nil {
		r.mu.Unlock()
		return ErrStopped
	}
	sup := r.sup
	r.mu.Unlock()

	cmd := newCommand(r.cfg.Shell, t.Command)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		r.log.Error("task spawn failed", logx.String("task", t.Name), logx.Err(err))
		r.bus.Publish(eventbus.Event{Type: eventbus.TaskSpawnFailed, Data: SpawnFailed{Task: t.Name, Error: err.Error()}})
		return fmt.Errorf("spawn %s: %w", t.Name, err)
	}

	h := &Handle{RunID: uuid.NewString(), Pid: cmd.Process.Pid, StartedAt: started}
	t.Attach(*h)

	r.mu.Lock()
	r.procs[h.RunID] = cmd
	r.mu.Unlock()

	r.log.Info("task fired",
		logx.String("task", t.Name),
		logx.Int("pid", h.Pid),
		logx.String("run_id", h.RunID),
		logx.Duration("threshold", t.Threshold),
	)
	r.bus.Publish(eventbus.Event{Type: eventbus.TaskFired, Time: started, Data: Fired{Task: t.Name, Command: t.Command, Handle: *h}})

	name, command := t.Name, t.Command
	sup.Go0("task.wait."+name, func(ctx context.Context) {
		r.wait(ctx, name, command, *h, cmd)
	})
	return nil
}

func (r *Runner) wait(ctx context.Context, name, command string, h Handle, cmd *exec.Cmd) {
	err := cmd.Wait()

	r.mu.Lock()
	delete(r.procs, h.RunID)
	r.mu.Unlock()

	ex := Exit{
		Task:     name,
		Command:  command,
		RunID:    h.RunID,
		Pid:      h.Pid,
		Started:  h.StartedAt,
		Duration: time.Since(h.StartedAt),
		ExitCode: exitCode(cmd, err),
		Err:      err,
	}
	r.log.Debug("task exited",
		logx.String("task", name),
		logx.Int("pid", h.Pid),
		logx.Int("code", ex.ExitCode),
		logx.Duration("took", ex.Duration),
	)
	r.bus.Publish(eventbus.Event{Type: eventbus.TaskExited, Data: ex})

	select {
	case r.exits <- ex:
	case <-ctx.Done():
	}
}

// Running returns the number of children not yet reaped.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Close stops accepting fires, optionally terminates remaining children and
// waits for the waiters until ctx is done.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	sup := r.sup
	var pending []*exec.Cmd
	if r.cfg.TerminateOnExit {
		for _, c := range r.procs {
			pending = append(pending, c)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, c := range pending {
		if err := terminateGroup(c); err != nil && !errors.Is(err, syscall.ESRCH) {
			errs = append(errs, err)
		}
	}
	if sup == nil {
		return errors.Join(errs...)
	}
	if !r.cfg.TerminateOnExit {
		// Detached children outlive the daemon; do not wait for them.
		sup.Cancel()
		return errors.Join(errs...)
	}
	if err := sup.Wait(ctx); err != nil {
		sup.Cancel()
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// newCommand puts the child in its own process group so terminal signals
// aimed at the daemon do not reach it.
func newCommand(shell, command string) *exec.Cmd {
	cmd := exec.Command(shell, "-c", command)
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

func terminateGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("terminate process group %d: %w", cmd.Process.Pid, err)
	}
	return nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
