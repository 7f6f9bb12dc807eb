package idle

import (
	"context"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mutterBusName = "org.gnome.Mutter.IdleMonitor"
	mutterPath    = dbus.ObjectPath("/org/gnome/Mutter/IdleMonitor/Core")
	mutterMethod  = "org.gnome.Mutter.IdleMonitor.GetIdletime"
)

// Mutter asks GNOME's idle monitor over the session bus. It works on both
// X11 and Wayland GNOME sessions.
type Mutter struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func NewMutter() *Mutter { return &Mutter{} }

func (m *Mutter) Name() string { return "mutter" }

func (m *Mutter) Idle(ctx context.Context) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
		if err != nil {
			return 0, &QueryError{Source: m.Name(), Err: err}
		}
		m.conn = conn
	}

	var ms uint64
	obj := m.conn.Object(mutterBusName, mutterPath)
	if err := obj.CallWithContext(ctx, mutterMethod, 0).Store(&ms); err != nil {
		_ = m.conn.Close()
		m.conn = nil
		return 0, &QueryError{Source: m.Name(), Err: err}
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (m *Mutter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}
