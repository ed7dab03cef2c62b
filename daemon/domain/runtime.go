package domain

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// RuntimeDir is the daemon-private directory under /run (or $RUNTIME_DIR)
// holding the resolved-config copy start wrote (so stop reads the same
// values) and the per-component snapshot/state files.
type RuntimeDir struct {
	Path string
}

// DefaultRuntimeDir is used when RUNTIME_DIR is unset.
const DefaultRuntimeDir = "/run/systemd-swap"

// NewRuntimeDir resolves the runtime directory from the RUNTIME_DIR
// environment override or the default, and ensures it exists.
func NewRuntimeDir(override string) (RuntimeDir, error) {
	path := override
	if path == "" {
		path = DefaultRuntimeDir
	}
	if err := os.MkdirAll(path, 0o750); err != nil { //nolint:gosec // G301: daemon-private runtime directory
		return RuntimeDir{}, fmt.Errorf("creating runtime directory %s: %w", path, err)
	}
	return RuntimeDir{Path: path}, nil
}

// LockPath is the exclusive lock file the supervisor holds for the lifetime
// of a running instance.
func (r RuntimeDir) LockPath() string {
	return filepath.Join(r.Path, "systemd-swap.lock")
}

// ConfigSnapshotPath is where start persists the resolved config so stop
// reads identical values.
func (r RuntimeDir) ConfigSnapshotPath() string {
	return filepath.Join(r.Path, "swap.conf")
}

// StateFile returns the path for a named per-component state file (e.g.
// "zswap.orig", "zram.state"), alongside the runtime config snapshot.
func (r RuntimeDir) StateFile(name string) string {
	return filepath.Join(r.Path, name)
}

// WritePersistedMode records the mode `start` resolved so `status` can
// report it without re-running mode selection.
func WritePersistedMode(r RuntimeDir, mode Mode) error {
	return WriteKeyValueFile(r.StateFile("mode.state"), []string{"mode"}, map[string]string{"mode": string(mode)})
}

// ReadPersistedMode returns the mode recorded by the last `start`, or the
// empty Mode when none was persisted.
func ReadPersistedMode(r RuntimeDir) Mode {
	values, err := ReadKeyValueFile(r.StateFile("mode.state"))
	if err != nil {
		return ""
	}
	return Mode(values["mode"])
}

// WriteKeyValueFile persists an ordered key/value snapshot using the same
// key=value grammar every daemon-managed file uses. keys fixes the
// write order so repeated dumps are byte-stable, which the clean
// start/stop/start/stop idempotence law depends on for
// diffing.
func WriteKeyValueFile(path string, keys []string, values map[string]string) error {
	cfg := ini.Empty()
	section := cfg.Section("")
	for _, k := range keys {
		if _, err := section.NewKey(k, values[k]); err != nil {
			return fmt.Errorf("writing key %q: %w", k, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:gosec // G301: daemon-private runtime directory
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadKeyValueFile reads a key=value snapshot back (e.g. stop reading the
// config start wrote). Returns an empty map without error if path doesn't
// exist — a fresh start with no prior snapshot is not a failure.
func ReadKeyValueFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	result := make(map[string]string)
	for _, key := range cfg.Section("").Keys() {
		result[key.Name()] = key.String()
	}
	return result, nil
}
