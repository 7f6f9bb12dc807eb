package app

import "github.com/coreos/go-systemd/v22/daemon"

// Notifier reports service state to the init system.
type Notifier interface {
	Notify(state string) error
}

// systemdNotifier speaks the sd_notify protocol. Outside a systemd unit
// ($NOTIFY_SOCKET unset) every call is a no-op.
type systemdNotifier struct{}

func (systemdNotifier) Notify(state string) error {
	_, err := daemon.SdNotify(false, state)
	return err
}

func statusLine(busy bool, tasks int) string {
	if busy {
		return "STATUS=busy override active"
	}
	if tasks == 0 {
		return "STATUS=idle tracking, no tasks configured"
	}
	return "STATUS=idle tracking"
}
