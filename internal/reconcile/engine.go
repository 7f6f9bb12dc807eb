package reconcile

import (
	"context"
	"time"

	"jautolock/internal/idle"
	"jautolock/internal/task"
	logx "jautolock/pkg/logx"
)

// Firer spawns a task. Its errors are the caller's concern; the engine only
// needs the call to happen.
type Firer interface {
	Fire(t *task.Task) error
}

// FirerFunc adapts a plain function to Firer.
type FirerFunc func(t *task.Task) error

func (f FirerFunc) Fire(t *task.Task) error { return f(t) }

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	// ActivityEpsilon is the shift of the idle-start timestamp treated as
	// new user activity.
	ActivityEpsilon time.Duration
	// MinSleep is the floor for the returned delay.
	MinSleep time.Duration
}

func (o Options) withDefaults() Options {
	if o.ActivityEpsilon <= 0 {
		o.ActivityEpsilon = DefaultActivityEpsilon
	}
	if o.MinSleep <= 0 {
		o.MinSleep = DefaultMinSleep
	}
	return o
}

// State is a read-only view of the engine baseline.
type State struct {
	LastFired    time.Duration `json:"last_fired"`
	Offset       time.Duration `json:"offset"`
	LastObserved time.Duration `json:"last_observed"`
	Busy         bool          `json:"busy"`
}

// Engine owns the scheduling baseline. It is not safe for concurrent use;
// the driver loop is its only caller.
type Engine struct {
	src idle.Source
	opt Options
	log logx.Logger

	lastFired    time.Duration
	offset       time.Duration
	lastObserved time.Duration
	busy         bool

	// resync is set when leaving busy mode; the next cycle rebases instead
	// of comparing against the activity recorded while busy.
	resync bool
}

// New returns an Engine reading idle time from src.
func New(src idle.Source, opt Options, log logx.Logger) *Engine {
	return &Engine{
		src: src,
		opt: opt.withDefaults(),
		log: log.With(logx.String("comp", "reconcile")),
	}
}

// Cycle runs one scheduling iteration at monotonic time now. It fires the
// eligible tasks through f and returns how long the driver may sleep. The
// only error is the idle source's; the state is left untouched then.
func (e *Engine) Cycle(ctx context.Context, now time.Duration, tasks task.List, f Firer) (time.Duration, error) {
	running := runningFloor(tasks)

	var idleFor time.Duration
	if !e.busy {
		d, err := e.src.Idle(ctx)
		if err != nil {
			return 0, err
		}
		idleFor = d
	}
	activity := now - idleFor

	switch {
	case e.resync:
		e.resync = false
		e.lastFired = running
		e.offset = now - running
		e.log.Debug("baseline resynced after busy", logx.Duration("running", running))
	case e.lastFired < running:
		e.lastFired = running
		e.offset = now - running
		activity = now
	case absDuration(activity-e.lastObserved) > e.opt.ActivityEpsilon:
		e.lastFired = running
		e.offset = activity - running
		e.log.Trace("user activity", logx.Duration("idle", idleFor), logx.Duration("running", running))
	}
	e.lastObserved = activity

	end := now - e.offset
	if !e.busy {
		for _, t := range tasks {
			if t.Running() || t.Threshold <= e.lastFired || t.Threshold > end {
				continue
			}
			_ = f.Fire(t)
			if t.Threshold > running {
				running = t.Threshold
			}
		}
	}
	e.lastFired = end

	if e.busy {
		return Forever, nil
	}
	return e.sleep(tasks, running), nil
}

func (e *Engine) sleep(tasks task.List, running time.Duration) time.Duration {
	d := Forever
	for _, t := range tasks {
		d = minPositive(d, t.Threshold-e.lastFired)
		d = minPositive(d, t.Threshold-running)
	}
	if d < e.opt.MinSleep {
		d = e.opt.MinSleep
	}
	return d
}

// FireNow treats threshold as already reached at now, as if that much idle
// time had just elapsed. Thresholds at or below the baseline change nothing.
// The observed activity is left alone so the current idle streak carries on.
func (e *Engine) FireNow(now, threshold time.Duration) {
	if threshold <= e.lastFired {
		return
	}
	e.lastFired = threshold
	e.offset = now - threshold
}

// SetBusy toggles the busy override. It takes effect on the next Cycle.
func (e *Engine) SetBusy(busy bool) {
	if e.busy && !busy {
		e.resync = true
	}
	e.busy = busy
}

// Busy reports whether the busy override is on.
func (e *Engine) Busy() bool { return e.busy }

// State returns a snapshot of the baseline.
func (e *Engine) State() State {
	return State{
		LastFired:    e.lastFired,
		Offset:       e.offset,
		LastObserved: e.lastObserved,
		Busy:         e.busy,
	}
}

func runningFloor(tasks task.List) time.Duration {
	var floor time.Duration
	for _, t := range tasks {
		if t.Running() && t.Threshold > floor {
			floor = t.Threshold
		}
	}
	return floor
}
