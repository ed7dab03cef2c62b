package lib

import (
	"fmt"
	"os"
	"path/filepath"
)

// FilesystemType invokes findmnt to determine the filesystem type backing
// path. If path does not exist, its nearest existing ancestor is probed
// instead.
func FilesystemType(path string) (string, error) {
	probe := nearestExistingAncestor(path)

	lines, err := ExecCommand("findmnt", "--noheadings", "--output", "FSTYPE", "--target", probe)
	if err != nil {
		return "", fmt.Errorf("findmnt %s: %w", probe, err)
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("findmnt returned no output for %s", probe)
	}
	return lines[0], nil
}

// nearestExistingAncestor walks up path's directory tree until it finds a
// component that exists on disk. It always terminates at "/" at the latest.
func nearestExistingAncestor(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return abs
		}
		abs = parent
	}
}

// FreeDiskSpace returns the free bytes available on the filesystem backing path.
func FreeDiskSpace(path string) (int64, error) {
	var stat statfsT
	if err := statfs(nearestExistingAncestor(path), &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
