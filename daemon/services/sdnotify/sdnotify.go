// Package sdnotify sends readiness/status notifications to the process's
// service supervisor over the standard notification socket protocol. The
// protocol is a single connectionless datagram write; net.Dial("unixgram",
// ...) is the whole implementation a client library would add.
package sdnotify

import (
	"net"
	"os"

	"github.com/systemd-swap/swapd/daemon/logger"
)

// Ready notifies the supervisor that startup has completed.
func Ready() { send("READY=1") }

// Stopping notifies the supervisor that shutdown has begun.
func Stopping() { send("STOPPING=1") }

// Status sends a human-readable one-line status string.
func Status(text string) { send("STATUS=" + text) }

// send writes msg to $NOTIFY_SOCKET. A missing socket is not an error — the
// daemon may be running outside a service supervisor entirely.
func send(msg string) {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return
	}

	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		logger.Debug("sdnotify: dialing %s failed: %v", addr, err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(msg)); err != nil {
		logger.Debug("sdnotify: writing %q failed: %v", msg, err)
	}
}
