package lib

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadSysfs reads a sysfs/procfs attribute file and returns its trimmed
// string value. Every controller reads kernel state this way rather than by
// shelling out — sysfs/procfs I/O is direct file I/O, cheap enough for the
// monitor hot path.
func ReadSysfs(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a fixed kernel interface, not user input
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadSysfsInt64 reads a sysfs attribute and parses it as a signed integer.
func ReadSysfsInt64(path string) (int64, error) {
	s, err := ReadSysfs(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s as integer: %w", path, err)
	}
	return v, nil
}

// ReadSysfsUint64 reads a sysfs attribute and parses it as an unsigned integer.
func ReadSysfsUint64(path string) (uint64, error) {
	s, err := ReadSysfs(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s as unsigned integer: %w", path, err)
	}
	return v, nil
}

// WriteSysfs writes value to a sysfs/procfs attribute file. Kernel
// interfaces commonly reject a trailing newline on some attributes and
// require one on others; most accept either, so a single trailing newline
// is always appended, matching what `echo value > file` would produce from
// a shell (the idiom the original shell-based daemon used for every write).
func WriteSysfs(path, value string) error {
	if err := os.WriteFile(path, []byte(value+"\n"), 0o644); err != nil { //nolint:gosec // G306: kernel interface, not a secret
		return fmt.Errorf("writing %q to %s: %w", value, path, err)
	}
	return nil
}

// SysfsExists reports whether a sysfs/procfs path is present, used to detect
// optional kernel features (e.g. the zswap module, MGLRU) before attempting
// to tune them.
func SysfsExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
