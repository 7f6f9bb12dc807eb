package idle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

var ErrUnknownSource = errors.New("unknown idle source")

// Source reports how long the user has been idle.
type Source interface {
	Name() string
	Idle(ctx context.Context) (time.Duration, error)
	Close() error
}

// QueryError reports an unreachable or unsupported idle facility.
type QueryError struct {
	Source string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("idle query (%s): %v", e.Source, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Open returns the source named by kind ("auto", "x11", "mutter", "static").
func Open(kind string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "auto":
		if os.Getenv("DISPLAY") != "" {
			return NewX11(""), nil
		}
		if os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
			return NewMutter(), nil
		}
		return nil, &QueryError{Source: "auto", Err: errors.New("no X display and no session bus")}
	case "x11":
		return NewX11(""), nil
	case "mutter", "gnome":
		return NewMutter(), nil
	case "static":
		return NewStatic(0), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
}

// Static reports a fixed idle duration. It is meant for tests and for running
// the daemon without a desktop session.
type Static struct {
	mu   sync.Mutex
	idle time.Duration
	err  error
}

func NewStatic(d time.Duration) *Static { return &Static{idle: d} }

func (s *Static) Name() string { return "static" }

func (s *Static) Idle(context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, &QueryError{Source: "static", Err: s.err}
	}
	return s.idle, nil
}

func (s *Static) Set(d time.Duration) {
	s.mu.Lock()
	s.idle = d
	s.mu.Unlock()
}

// Fail makes every following query fail with err (nil clears it).
func (s *Static) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Static) Close() error { return nil }
