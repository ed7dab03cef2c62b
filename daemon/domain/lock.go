package domain

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// InstanceLock is the exclusive runtime-directory lock enforcing "exactly
// one instance per host may mutate swap". It also carries the
// holding process's PID so `stop` and `status` can find it without a
// separate PID file.
type InstanceLock struct {
	file *os.File
}

// AcquireLock takes an exclusive, non-blocking flock on runtime's lock file
// and stamps it with the current PID. It fails immediately (rather than
// blocking) if another instance already holds it.
func AcquireLock(runtime RuntimeDir) (*InstanceLock, error) {
	path := runtime.LockPath()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // G302: runtime-directory lock file
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("another instance is already running (%s is locked): %w", path, err)
	}

	if err := file.Truncate(0); err != nil {
		file.Close()
		return nil, fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing pid to lock file: %w", err)
	}

	return &InstanceLock{file: file}, nil
}

// Release drops the flock and closes the lock file. Safe to call from a
// signal handler's goroutine during shutdown.
func (l *InstanceLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
}

// ReadLockedPID reads the PID recorded by a running instance's lock file,
// for `stop`/`status` to target without taking the lock themselves. Returns
// 0, nil if no instance is running (lock file absent or empty, or the
// recorded process no longer exists).
func ReadLockedPID(runtime RuntimeDir) (int, error) {
	data, err := os.ReadFile(runtime.LockPath()) //nolint:gosec // G304: fixed runtime-directory path
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading lock file: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("parsing pid from lock file: %w", err)
	}
	// Release leaves the PID in place, so a stale value is checked for liveness.
	if err := syscall.Kill(pid, 0); err == syscall.ESRCH {
		return 0, nil
	}
	return pid, nil
}
