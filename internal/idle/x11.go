package idle

import (
	"context"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
)

// X11 asks the XScreenSaver extension for the time since the last input.
//
// The connection is opened lazily and dropped after any failure, so a
// restarted X server is picked up on the next query.
type X11 struct {
	display string

	mu   sync.Mutex
	conn *xgb.Conn
	root xproto.Window
}

// NewX11 targets display (empty means $DISPLAY).
func NewX11(display string) *X11 { return &X11{display: display} }

func (x *X11) Name() string { return "x11" }

func (x *X11) Idle(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, &QueryError{Source: x.Name(), Err: err}
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.conn == nil {
		if err := x.connectLocked(); err != nil {
			return 0, &QueryError{Source: x.Name(), Err: err}
		}
	}
	reply, err := screensaver.QueryInfo(x.conn, xproto.Drawable(x.root)).Reply()
	if err != nil {
		x.closeLocked()
		return 0, &QueryError{Source: x.Name(), Err: err}
	}
	return time.Duration(reply.MsSinceUserInput) * time.Millisecond, nil
}

func (x *X11) connectLocked() error {
	var (
		conn *xgb.Conn
		err  error
	)
	if x.display == "" {
		conn, err = xgb.NewConn()
	} else {
		conn, err = xgb.NewConnDisplay(x.display)
	}
	if err != nil {
		return err
	}
	if err := screensaver.Init(conn); err != nil {
		conn.Close()
		return err
	}
	x.conn = conn
	x.root = xproto.Setup(conn).DefaultScreen(conn).Root
	return nil
}

func (x *X11) closeLocked() {
	if x.conn != nil {
		x.conn.Close()
		x.conn = nil
	}
}

func (x *X11) Close() error {
	x.mu.Lock()
	x.closeLocked()
	x.mu.Unlock()
	return nil
}
