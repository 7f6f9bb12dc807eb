package app

import (
	"strings"
	"time"

	"jautolock/internal/config"
	"jautolock/internal/reconcile"
	"jautolock/internal/storage"
	"jautolock/internal/task"
	logx "jautolock/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Journal: logx.JournalConfig{
			Enabled:    cfg.Logging.Journal.Enabled,
			MinLevel:   cfg.Logging.Journal.MinLevel,
			RatePerSec: cfg.Logging.Journal.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, nil
}

func mapEngineOptions(cfg *config.Config) (reconcile.Options, error) {
	eps, err := cfg.Idle.ActivityEpsilonDuration()
	if err != nil {
		return reconcile.Options{}, err
	}
	minSleep, err := cfg.Idle.MinSleepDuration()
	if err != nil {
		return reconcile.Options{}, err
	}
	return reconcile.Options{ActivityEpsilon: eps, MinSleep: minSleep}, nil
}

func mapRunnerConfig(cfg *config.Config) task.Config {
	return task.Config{Shell: cfg.Runner.Shell, TerminateOnExit: cfg.Runner.TerminateOnExit}
}

func mapTasks(cfg *config.Config) task.List {
	out := make(task.List, 0, len(cfg.Tasks))
	for _, tc := range cfg.Tasks {
		out = append(out, &task.Task{
			Name:      strings.TrimSpace(tc.Name),
			Threshold: tc.Time.Duration(),
			Command:   tc.Command,
		})
	}
	return out
}
