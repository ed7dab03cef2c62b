package cmd

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/logger"
)

// Stop signals the running daemon instance to shut down, equivalent to the
// SIGTERM the service supervisor sends.
type Stop struct {
	Timeout time.Duration `default:"30s" help:"how long to wait for the daemon to exit"`
}

// Run finds the running instance via the lock file's recorded PID, sends
// SIGTERM, and waits for the process to exit. Exits zero when the daemon
// stopped or was not running; nonzero when the lock file cannot be read,
// when signaling fails, or when the process has not exited within Timeout.
func (s *Stop) Run(env *Env) error {
	rt, err := domain.NewRuntimeDir(env.RuntimeDir)
	if err != nil {
		return domain.NewEnvironmentError("runtime directory", err)
	}

	pid, err := domain.ReadLockedPID(rt)
	if err != nil {
		return err
	}
	if pid == 0 {
		logger.Info("stop: no running instance")
		return nil
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			logger.Info("stop: pid %d already gone", pid)
			return nil
		}
		return fmt.Errorf("signaling pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(s.Timeout)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
			logger.Info("stop: pid %d exited", pid)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("pid %d did not exit within %s", pid, s.Timeout)
}
