package lib

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads entire file contents
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: callers pass fixed kernel/runtime paths
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return string(data), nil
}

// ReadLines reads a file and returns lines
func ReadLines(path string) ([]string, error) {
	content, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(content, "\n"), nil
}

// ParseInt safely parses an integer from string
func ParseInt(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

// ParseUint64 safely parses uint64 from string
func ParseUint64(s string) uint64 {
	i, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return i
}

// ParseKeyValue parses "key=value" format
func ParseKeyValue(line string) (string, string) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", ""
	}
	key := strings.TrimSpace(parts[0])
	value := strings.Trim(strings.TrimSpace(parts[1]), "\"")
	return key, value
}
