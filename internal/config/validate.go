package config

import (
	"errors"
	"fmt"
	"strings"

	"jautolock/internal/idle"
	logx "jautolock/pkg/logx"
)

// Validate reports every problem found, each prefixed with its config path.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(path, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{path}, args...)...))
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add("logging.level", "unknown level %q", lvl)
	}
	if lvl := strings.TrimSpace(cfg.Logging.Journal.MinLevel); lvl != "" && !logx.ValidLevel(lvl) {
		add("logging.journal.min_level", "unknown level %q", lvl)
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add("logging.file.path", "required when file logging is enabled")
	}
	if cfg.Logging.Journal.RatePerSec < 0 {
		add("logging.journal.rate_per_sec", "must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Idle.Source)) {
	case "", "auto", "x11", "mutter", "gnome", "static":
	default:
		add("idle.source", "unknown source %q (use auto, x11, mutter or static)", cfg.Idle.Source)
	}
	if _, err := idle.ParsePolicy(cfg.Idle.OnError); err != nil {
		add("idle.on_error", "%v", err)
	}
	if _, err := cfg.Idle.ActivityEpsilonDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.Idle.MinSleepDuration(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none", "file", "sqlite":
	default:
		add("storage.driver", "unknown driver %q (use none, file or sqlite)", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]int, len(cfg.Tasks))
	for i, t := range cfg.Tasks {
		p := fmt.Sprintf("tasks[%d]", i)
		name := strings.TrimSpace(t.Name)
		switch {
		case name == "":
			add(p+".name", "required")
		case strings.ContainsAny(name, " \t\n"):
			add(p+".name", "%q must not contain whitespace", name)
		default:
			if j, dup := seen[name]; dup {
				add(p+".name", "%q already used by tasks[%d]", name, j)
			}
			seen[name] = i
		}
		if strings.TrimSpace(t.Command) == "" {
			add(p+".command", "required")
		}
		if d := t.Time.Duration(); d <= 0 {
			add(p+".time", "must be > 0 (got %s)", d)
		}
	}

	return errors.Join(errs...)
}
