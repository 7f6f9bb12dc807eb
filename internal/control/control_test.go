package control

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	logx "jautolock/pkg/logx"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    Command
		wantErr error
	}{
		{"now lock", Command{Kind: KindNow, Arg: "lock"}, nil},
		{"firenow  lock\n", Command{Kind: KindNow, Arg: "lock"}, nil},
		{"busy", Command{Kind: KindBusy}, nil},
		{"busy please", Command{Kind: KindBusy}, nil},
		{"unbusy", Command{Kind: KindUnbusy}, nil},
		{"status", Command{Kind: KindStatus}, nil},
		{"exit\n", Command{Kind: KindExit}, nil},
		{"now", Command{}, ErrBadArgument},
		{"exit now", Command{}, ErrBadArgument},
		{"lock", Command{}, ErrUnknownCommand},
		{"", Command{}, ErrUnknownCommand},
	}
	for _, tc := range cases {
		got, err := ParseCommand(tc.in)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ParseCommand(%q) err = %v, want %v", tc.in, err, tc.wantErr)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseCommand(%q) = %+v, %v; want %+v", tc.in, got, err, tc.want)
		}
	}
}

func TestReplyText(t *testing.T) {
	t.Parallel()
	_, nowErr := ParseCommand("now")
	cases := map[string]error{
		"No task has such name.":         ErrUnknownTask,
		"The task is already running.":   ErrTaskRunning,
		"However I don't understand it.": ErrUnknownCommand,
		`"now" expects one argument.`:    nowErr,
	}
	for want, err := range cases {
		if got := ReplyText(err); got != want {
			t.Fatalf("ReplyText(%v) = %q, want %q", err, got, want)
		}
	}
}

type fakeDaemon struct {
	mu   sync.Mutex
	cmds []Command
	busy bool
}

func (f *fakeDaemon) Dispatch(_ context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	switch cmd.Kind {
	case KindNow:
		switch cmd.Arg {
		case "lock":
			return Result{Text: "Task fired."}, nil
		case "notify":
			return Result{}, ErrTaskRunning
		default:
			return Result{}, ErrUnknownTask
		}
	case KindBusy:
		f.busy = true
		return Result{Text: "You're assumed to be busy."}, nil
	case KindUnbusy:
		f.busy = false
		return Result{Text: "You're no longer assumed to be busy."}, nil
	case KindExit:
		return Result{Text: "Will exit."}, nil
	case KindStatus:
		return Result{Status: &Status{
			Busy:  f.busy,
			Tasks: []TaskStatus{{Name: "lock", Threshold: time.Minute, Running: true, Pid: 99}},
		}}, nil
	}
	return Result{}, ErrUnknownCommand
}

func startServer(t *testing.T, d Dispatcher) *Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctl.sock")
	srv := NewServer(path, d, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()
	select {
	case <-srv.Ready():
	case err := <-errc:
		t.Fatalf("Serve: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server not ready")
	}

	cli, err := Dial(ctx, path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		_ = cli.Close()
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})
	return cli
}

func TestClientServerRoundTrip(t *testing.T) {
	t.Parallel()
	d := &fakeDaemon{}
	cli := startServer(t, d)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if got, err := cli.Now(ctx, "lock"); err != nil || got != "Task fired." {
		t.Fatalf("Now(lock) = %q, %v", got, err)
	}
	if _, err := cli.Now(ctx, "notify"); !errors.Is(err, ErrTaskRunning) {
		t.Fatalf("Now(notify) err = %v, want ErrTaskRunning", err)
	}
	if _, err := cli.Now(ctx, "nope"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("Now(nope) err = %v, want ErrUnknownTask", err)
	}
	if _, err := cli.Now(ctx, ""); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("Now(\"\") err = %v, want ErrBadArgument", err)
	}
	if got, err := cli.Busy(ctx); err != nil || got != "You're assumed to be busy." {
		t.Fatalf("Busy = %q, %v", got, err)
	}

	st, err := cli.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Busy || len(st.Tasks) != 1 || st.Tasks[0].Pid != 99 || st.Tasks[0].Threshold != time.Minute {
		t.Fatalf("Status = %+v", st)
	}

	if got, err := cli.Unbusy(ctx); err != nil || got != "You're no longer assumed to be busy." {
		t.Fatalf("Unbusy = %q, %v", got, err)
	}
	if got, err := cli.Exit(ctx); err != nil || got != "Will exit." {
		t.Fatalf("Exit = %q, %v", got, err)
	}
}

func TestSendTextProtocol(t *testing.T) {
	t.Parallel()
	d := &fakeDaemon{}
	cli := startServer(t, d)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cases := map[string]string{
		"firenow lock": "Message received.\nTask fired.",
		"now ghost":    "Message received.\nNo task has such name.",
		"dance":        "Message received.\nHowever I don't understand it.",
		"exit soon":    "Message received.\n\"exit\" expects no argument.",
	}
	for text, want := range cases {
		got, err := cli.Send(ctx, text)
		if err != nil {
			t.Fatalf("Send(%q): %v", text, err)
		}
		if got != want {
			t.Fatalf("Send(%q) = %q, want %q", text, got, want)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.cmds {
		if c.Kind == KindExit {
			t.Fatalf("malformed exit reached the daemon: %+v", d.cmds)
		}
	}
}

func TestServeRefusesLiveSocket(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ctl.sock")
	first := NewServer(path, &fakeDaemon{}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- first.Serve(ctx) }()
	<-first.Ready()

	second := NewServer(path, &fakeDaemon{}, logx.Nop())
	err := second.Serve(ctx)
	if err == nil || !strings.Contains(err.Error(), "in use") {
		t.Fatalf("second Serve = %v, want in-use error", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("first Serve: %v", err)
	}
}

func TestSocketPathPrecedence(t *testing.T) {
	t.Setenv(SocketEnv, "/tmp/from-env.sock")
	if got := SocketPath(" /run/explicit.sock "); got != "/run/explicit.sock" {
		t.Fatalf("explicit = %q", got)
	}
	if got := SocketPath(""); got != "/tmp/from-env.sock" {
		t.Fatalf("env = %q", got)
	}
	t.Setenv(SocketEnv, "")
	if got := SocketPath(""); !strings.HasSuffix(got, "jautolock.sock") {
		t.Fatalf("default = %q", got)
	}
}
