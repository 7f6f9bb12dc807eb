package config

// Config is the daemon configuration. Parse starts from Default, so omitted
// sections keep their defaults.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Idle    IdleConfig    `json:"idle"`
	Control ControlConfig `json:"control"`
	Storage StorageConfig `json:"storage"`
	Runner  RunnerConfig  `json:"runner"`
	Tasks   []TaskConfig  `json:"tasks"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Journal LoggingJournal `json:"journal"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingJournal forwards records to the systemd journal.
type LoggingJournal struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// IdleConfig selects the idle source.
//
// Durations are Go duration strings (e.g. "10ms").
//
// Defaults:
//   - source: "auto" (x11 when $DISPLAY is set, else mutter)
//   - on_error: "fatal"
//   - activity_epsilon: "10ms"
//   - min_sleep: "10ms"
type IdleConfig struct {
	Source          string `json:"source"`
	OnError         string `json:"on_error"`
	ActivityEpsilon string `json:"activity_epsilon,omitempty"`
	MinSleep        string `json:"min_sleep,omitempty"`
}

// ControlConfig controls the local command socket.
// An empty Socket means $JAUTOLOCK_SOCKET or $XDG_RUNTIME_DIR/jautolock.sock.
type ControlConfig struct {
	Enabled bool   `json:"enabled"`
	Socket  string `json:"socket,omitempty"`
}

// StorageConfig controls the optional run history.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "~/.local/state/jautolock/runs.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type RunnerConfig struct {
	Shell           string `json:"shell,omitempty"`
	TerminateOnExit bool   `json:"terminate_on_exit,omitempty"`
}

// TaskConfig is one idle-triggered command. Time is the idle threshold.
type TaskConfig struct {
	Name    string    `json:"name"`
	Time    Threshold `json:"time"`
	Command string    `json:"command"`
}

func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Journal: LoggingJournal{MinLevel: "warn", RatePerSec: 5},
		},
		Idle: IdleConfig{
			Source:          "auto",
			OnError:         "fatal",
			ActivityEpsilon: "10ms",
			MinSleep:        "10ms",
		},
		Control: ControlConfig{Enabled: true},
		Storage: StorageConfig{Driver: "none"},
		Runner:  RunnerConfig{Shell: "sh"},
	}
}
