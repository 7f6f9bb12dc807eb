package control

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const SocketEnv = "JAUTOLOCK_SOCKET"

// SocketPath resolves the control socket: an explicit path wins, then
// $JAUTOLOCK_SOCKET, then $XDG_RUNTIME_DIR/jautolock.sock.
func SocketPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := os.Getenv(SocketEnv); p != "" {
		return p
	}
	return filepath.Join(xdg.RuntimeDir, "jautolock.sock")
}
