package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"jautolock/internal/clock"
	"jautolock/internal/config"
	"jautolock/internal/control"
	"jautolock/internal/eventbus"
	"jautolock/internal/reconcile"
	"jautolock/internal/task"
	logx "jautolock/pkg/logx"
)

const statusRuns = 10

type request struct {
	cmd   control.Command
	reply chan response
}

type response struct {
	res control.Result
	err error
}

// run is the driver loop. It is the only goroutine touching the engine and
// the task list.
func (a *App) run(ctx context.Context) error {
	updates := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(updates)

	timer := time.NewTimer(reconcile.Forever)
	defer timer.Stop()

	for {
		a.drainExits()

		sleep, err := a.cycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		timer.Reset(sleep)

		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case ex := <-a.runner.Exits():
			a.reap(ex)
		case req := <-a.requests:
			res, err := a.handle(req.cmd)
			req.reply <- response{res: res, err: err}
			var ce *clock.Error
			if errors.As(err, &ce) {
				return err
			}
			if req.cmd.Kind == control.KindExit {
				return nil
			}
		case cfg, ok := <-updates:
			if ok {
				a.applyConfig(cfg)
			}
		}
	}
}

func (a *App) cycle(ctx context.Context) (time.Duration, error) {
	now, err := a.clock.Now()
	if err != nil {
		return 0, err
	}
	sleep, err := a.engine.Cycle(ctx, now, a.tasks, reconcile.FirerFunc(a.runner.Fire))
	if err != nil {
		return 0, err
	}
	a.nextWake = now + sleep
	a.log.Trace("cycle", logx.Duration("sleep", sleep))
	return sleep, nil
}

func (a *App) drainExits() {
	for {
		select {
		case ex := <-a.runner.Exits():
			a.reap(ex)
		default:
			return
		}
	}
}

func (a *App) reap(ex task.Exit) {
	t := a.tasks.Find(ex.Task)
	if t == nil || !t.Finish(ex.RunID) {
		// Removed by a reload or replaced by a newer run.
		a.log.Debug("exit for untracked run", logx.String("task", ex.Task), logx.String("run_id", ex.RunID))
		return
	}
	fields := []logx.Field{
		logx.String("task", ex.Task),
		logx.Int("pid", ex.Pid),
		logx.Int("code", ex.ExitCode),
		logx.Duration("took", ex.Duration),
	}
	if ex.Err != nil && ex.ExitCode != 0 {
		a.log.Warn("task finished with error", append(fields, logx.Err(ex.Err))...)
		return
	}
	a.log.Info("task finished", fields...)
}

func (a *App) handle(cmd control.Command) (control.Result, error) {
	switch cmd.Kind {
	case control.KindNow:
		return a.fireNow(cmd.Arg)
	case control.KindBusy:
		a.setBusy(true)
		return control.Result{Text: "You're assumed to be busy."}, nil
	case control.KindUnbusy:
		a.setBusy(false)
		return control.Result{Text: "You're no longer assumed to be busy."}, nil
	case control.KindExit:
		a.exitAsked.Store(true)
		a.log.Info("exit requested")
		return control.Result{Text: "Will exit."}, nil
	case control.KindStatus:
		st := a.status()
		return control.Result{Status: &st}, nil
	default:
		return control.Result{}, fmt.Errorf("%w: %s", control.ErrUnknownCommand, cmd.Kind)
	}
}

func (a *App) fireNow(name string) (control.Result, error) {
	t := a.tasks.Find(name)
	if t == nil {
		return control.Result{}, fmt.Errorf("%w: %q", control.ErrUnknownTask, name)
	}
	if t.Running() {
		return control.Result{}, fmt.Errorf("%w: %q", control.ErrTaskRunning, name)
	}
	now, err := a.clock.Now()
	if err != nil {
		return control.Result{}, err
	}
	if err := a.runner.Fire(t); err != nil {
		if errors.Is(err, task.ErrRunning) {
			return control.Result{}, fmt.Errorf("%w: %q", control.ErrTaskRunning, name)
		}
		return control.Result{}, err
	}
	// Only a task that actually started moves the baseline.
	a.engine.FireNow(now, t.Threshold)
	a.log.Info("manual fire", logx.String("task", t.Name))
	return control.Result{Text: "Task fired."}, nil
}

func (a *App) setBusy(busy bool) {
	if a.engine.Busy() == busy {
		return
	}
	a.engine.SetBusy(busy)

	typ := eventbus.IdleUnbusy
	if busy {
		typ = eventbus.IdleBusy
	}
	a.bus.Publish(eventbus.Event{Type: typ, Time: time.Now()})
	a.notify(statusLine(busy, len(a.tasks)))
	a.log.Info("busy override", logx.Bool("busy", busy))
}

func (a *App) status() control.Status {
	st := a.engine.State()
	out := control.Status{
		Pid:        os.Getpid(),
		StartedAt:  a.startedAt,
		ConfigPath: a.cfgm.Path(),
		IdleSource: a.src.Name(),
		Busy:       st.Busy,
		LastFired:  st.LastFired,
		Offset:     st.Offset,
		Tasks:      make([]control.TaskStatus, 0, len(a.tasks)),
	}
	if !st.Busy {
		if now, err := a.clock.Now(); err == nil && a.nextWake > now {
			out.NextWake = a.nextWake - now
		}
	}
	for _, t := range a.tasks {
		ts := control.TaskStatus{Name: t.Name, Threshold: t.Threshold, Command: t.Command}
		if h, ok := t.Handle(); ok {
			ts.Running = true
			ts.Pid = h.Pid
			ts.StartedAt = h.StartedAt
		}
		out.Tasks = append(out.Tasks, ts)
	}
	return out
}

// applyConfig swaps in a reloaded config. Logging and tasks apply live; the
// other sections are reported and wait for a restart.
func (a *App) applyConfig(cfg *config.Config) {
	changed, attrs, restart := config.SummarizeChange(a.cfg, cfg)
	if len(changed) == 0 {
		return
	}
	a.logs.Apply(mapLogConfig(cfg))
	a.tasks = a.tasks.Replace(mapTasks(cfg))
	a.cfg = cfg

	a.log.Info("config applied", append(attrs, logx.Any("sections", changed))...)
	if len(restart) > 0 {
		a.log.Warn("config sections need a restart to take effect", logx.Any("sections", restart))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Time: time.Now(), Data: changed})
	a.notify(statusLine(a.engine.Busy(), len(a.tasks)))
}

// Dispatch hands cmd to the driver loop and waits for its answer. It
// implements control.Dispatcher.
func (a *App) Dispatch(ctx context.Context, cmd control.Command) (control.Result, error) {
	req := request{cmd: cmd, reply: make(chan response, 1)}
	select {
	case a.requests <- req:
	case <-a.loopDone:
		return control.Result{}, control.ErrStopping
	case <-ctx.Done():
		return control.Result{}, ctx.Err()
	}

	// The loop answers every request it accepts.
	var resp response
	select {
	case resp = <-req.reply:
	case <-ctx.Done():
		return control.Result{}, ctx.Err()
	}
	if resp.err != nil || cmd.Kind != control.KindStatus || a.store == nil {
		return resp.res, resp.err
	}

	runs, err := a.store.RecentRuns(ctx, statusRuns)
	if err != nil {
		a.log.Warn("run history unavailable", logx.Err(err))
		return resp.res, nil
	}
	resp.res.Status.Runs = runs
	return resp.res, nil
}
