package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAMLTasks(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.yaml", `
logging:
  level: debug
idle:
  source: static
tasks:
  - name: notify
    time: 50
    command: notify-send "locking soon"
  - name: lock
    time: 1m
    command: i3lock -n
  - name: dim
    time: "90"
    command: brightnessctl set 10%
  - name: suspend
    command: systemctl suspend
`)
	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := map[string]time.Duration{
		"notify":  50 * time.Second,
		"lock":    time.Minute,
		"dim":     90 * time.Second,
		"suspend": DefaultThreshold,
	}
	if len(cfg.Tasks) != len(want) {
		t.Fatalf("tasks = %d, want %d", len(cfg.Tasks), len(want))
	}
	for _, tc := range cfg.Tasks {
		if got := tc.Time.Duration(); got != want[tc.Name] {
			t.Fatalf("%s threshold = %v, want %v", tc.Name, got, want[tc.Name])
		}
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging defaults not merged: %+v", cfg.Logging)
	}
	if !cfg.Control.Enabled || cfg.Idle.OnError != "fatal" || cfg.Runner.Shell != "sh" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestParseRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cases := map[string]string{
		"unknown.json":  `{"tasks": [], "notifier": {}}`,
		"trailing.json": `{"tasks": []} {"tasks": []}`,
		"badtime.yaml":  "tasks:\n  - {name: a, time: soon, command: x}\n",
		"float.yaml":    "tasks:\n  - {name: a, time: 1.5, command: x}\n",
	}
	for name, body := range cases {
		p := writeFile(t, dir, name, body)
		if _, err := NewManager(p).Parse(); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestEmptyPathServesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := NewManager("").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Tasks) != 0 || cfg.Idle.Source != "auto" {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		mut  func(c *Config)
		want string
	}{
		{"ok", func(c *Config) {}, ""},
		{"missing command", func(c *Config) { c.Tasks[0].Command = " " }, "tasks[0].command"},
		{"missing name", func(c *Config) { c.Tasks[1].Name = "" }, "tasks[1].name"},
		{"duplicate name", func(c *Config) { c.Tasks[1].Name = "notify" }, "already used by tasks[0]"},
		{"negative time", func(c *Config) { c.Tasks[0].Time = Seconds(-5) }, "tasks[0].time"},
		{"zero time", func(c *Config) { c.Tasks[0].Time = Seconds(0) }, "tasks[0].time"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad source", func(c *Config) { c.Idle.Source = "wayland" }, "idle.source"},
		{"bad policy", func(c *Config) { c.Idle.OnError = "ignore" }, "idle.on_error"},
		{"bad epsilon", func(c *Config) { c.Idle.ActivityEpsilon = "fast" }, "idle.activity_epsilon"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"file without path", func(c *Config) { c.Logging.File.Enabled = true }, "logging.file.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Tasks = []TaskConfig{
				{Name: "notify", Time: Seconds(50), Command: "notify-send hi"},
				{Name: "lock", Time: Seconds(60), Command: "i3lock"},
			}
			tc.mut(&cfg)
			err := Validate(&cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestParseThreshold(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"600", 600 * time.Second, true},
		{" 10m30s ", 10*time.Minute + 30*time.Second, true},
		{"1h", time.Hour, true},
		{"", 0, false},
		{"ten", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseThreshold(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("ParseThreshold(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := Default()
	oldCfg.Tasks = []TaskConfig{
		{Name: "notify", Time: Seconds(50), Command: "a"},
		{Name: "lock", Time: Seconds(60), Command: "b"},
	}
	newCfg := Default()
	newCfg.Logging.Level = "debug"
	newCfg.Storage.Driver = "sqlite"
	newCfg.Tasks = []TaskConfig{
		{Name: "lock", Time: Seconds(90), Command: "b"},
		{Name: "suspend", Time: Seconds(900), Command: "c"},
	}

	changed, attrs, restart := SummarizeChange(&oldCfg, &newCfg)
	if strings.Join(changed, ",") != "logging,storage,tasks" {
		t.Fatalf("changed = %v", changed)
	}
	if strings.Join(restart, ",") != "storage" {
		t.Fatalf("restart = %v", restart)
	}
	if len(attrs) == 0 {
		t.Fatal("expected log attrs")
	}

	added, removed, modified := diffTasks(oldCfg.Tasks, newCfg.Tasks)
	if strings.Join(added, ",") != "suspend" || strings.Join(removed, ",") != "notify" || strings.Join(modified, ",") != "lock" {
		t.Fatalf("diff = +%v -%v ~%v", added, removed, modified)
	}
}

func TestDiscoverPrefersConfigHome(t *testing.T) {
	t.Cleanup(xdg.Reload)
	home := t.TempDir()
	cfgHome := filepath.Join(home, "config")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(home, "etc-xdg"))
	xdg.Reload()

	writeFile(t, home, ".jautolock.yaml", "tasks: []\n")
	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got != filepath.Join(home, ".jautolock.yaml") {
		t.Fatalf("Discover = %q, want the dotfile", got)
	}

	if err := os.MkdirAll(filepath.Join(cfgHome, "jautolock"), 0o755); err != nil {
		t.Fatal(err)
	}
	want := writeFile(t, filepath.Join(cfgHome, "jautolock"), "config.json", `{"tasks": []}`)
	if got, _ = Discover(); got != want {
		t.Fatalf("Discover = %q, want %q", got, want)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", "tasks:\n  - {name: lock, time: 60, command: i3lock}\n")

	m := NewManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	// Let the watcher register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is rejected and the current config stays.
	writeFile(t, dir, "config.yaml", "tasks:\n  - {name: lock, time: 60}\n")
	select {
	case cfg := <-updates:
		t.Fatalf("invalid config published: %+v", cfg)
	case <-time.After(600 * time.Millisecond):
	}

	writeFile(t, dir, "config.yaml", "tasks:\n  - {name: lock, time: 120, command: i3lock}\n")
	select {
	case cfg := <-updates:
		if got := cfg.Tasks[0].Time.Duration(); got != 2*time.Minute {
			t.Fatalf("reloaded threshold = %v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no config published after a valid edit")
	}
	if got := m.Get().Tasks[0].Time.Duration(); got != 2*time.Minute {
		t.Fatalf("Get() threshold = %v", got)
	}

	cancel()
	<-done
}
