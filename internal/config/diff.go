package config

import (
	"reflect"
	"strings"

	logx "jautolock/pkg/logx"
)

// Sections applied without a restart.
var liveSections = map[string]bool{"logging": true, "tasks": true}

// SummarizeChange returns the changed top-level sections, fields describing
// them for logging, and the subset that only takes effect after a restart.
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	mark := func(section string, fields ...logx.Field) {
		changed = append(changed, section)
		attrs = append(attrs, fields...)
		if !liveSections[section] {
			restart = append(restart, section)
		}
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.journal", newCfg.Logging.Journal.Enabled),
		)
	}
	if oldCfg.Idle != newCfg.Idle {
		mark("idle",
			logx.String("idle.source", newCfg.Idle.Source),
			logx.String("idle.on_error", newCfg.Idle.OnError),
		)
	}
	if oldCfg.Control != newCfg.Control {
		mark("control", logx.Bool("control.enabled", newCfg.Control.Enabled))
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Runner != newCfg.Runner {
		mark("runner", logx.String("runner.shell", newCfg.Runner.Shell))
	}

	added, removed, modified := diffTasks(oldCfg.Tasks, newCfg.Tasks)
	if len(added)+len(removed)+len(modified) > 0 || !sameOrder(oldCfg.Tasks, newCfg.Tasks) {
		mark("tasks",
			logx.Int("tasks.count", len(newCfg.Tasks)),
			logx.String("tasks.added", strings.Join(added, ",")),
			logx.String("tasks.removed", strings.Join(removed, ",")),
			logx.String("tasks.modified", strings.Join(modified, ",")),
		)
	}
	return changed, attrs, restart
}

func diffTasks(oldT, newT []TaskConfig) (added, removed, modified []string) {
	prev := make(map[string]TaskConfig, len(oldT))
	for _, t := range oldT {
		prev[t.Name] = t
	}
	next := make(map[string]bool, len(newT))
	for _, t := range newT {
		next[t.Name] = true
		p, ok := prev[t.Name]
		switch {
		case !ok:
			added = append(added, t.Name)
		case p.Command != t.Command || p.Time.Duration() != t.Time.Duration():
			modified = append(modified, t.Name)
		}
	}
	for _, t := range oldT {
		if !next[t.Name] {
			removed = append(removed, t.Name)
		}
	}
	return added, removed, modified
}

func sameOrder(a, b []TaskConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}
