package app

import (
	"context"

	"jautolock/internal/eventbus"
	"jautolock/internal/storage"
	"jautolock/internal/task"
	logx "jautolock/pkg/logx"
)

// record follows the event bus and appends finished runs to the store.
func (a *App) record(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", ev.Type))
			if ev.Type != eventbus.TaskExited || a.store == nil {
				continue
			}
			ex, ok := ev.Data.(task.Exit)
			if !ok {
				continue
			}
			if err := a.store.AppendRun(ctx, runFromExit(ex)); err != nil {
				a.log.Warn("run history append failed", logx.String("task", ex.Task), logx.Err(err))
			}
		}
	}
}

func runFromExit(ex task.Exit) storage.Run {
	r := storage.Run{
		ID:        ex.RunID,
		Task:      ex.Task,
		Command:   ex.Command,
		Pid:       ex.Pid,
		StartedAt: ex.Started.UTC(),
		EndedAt:   ex.Started.Add(ex.Duration).UTC(),
		ExitCode:  ex.ExitCode,
	}
	if ex.Err != nil {
		r.Error = ex.Err.Error()
	}
	return r
}
