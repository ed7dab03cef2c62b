// Package lib provides utility functions for parsing, validation, and shell command execution.
package lib

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// ParseINIFile parses a key=value file using its default (unnamed) section
// and returns a map. Comments (# and ;), quoted values, and whitespace
// trimming are handled by ini.v1 itself.
func ParseINIFile(path string) (map[string]string, error) {
	values, _, err := ParseINIFileOrdered(path)
	return values, err
}

// ParseINIFileOrdered is like ParseINIFile but also returns the keys in the
// order they first appeared in the file; a repeated key keeps its first
// position but maps to its last value. The configuration resolver needs
// this to expand ${VAR} references in file order and to apply last-value-wins
// semantics for a key repeated within one file.
func ParseINIFileOrdered(path string) (map[string]string, []string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, err
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse INI file %s: %w", path, err)
	}

	defaultSection := cfg.Section("")
	keyNames := defaultSection.KeyStrings()

	result := make(map[string]string, len(keyNames))
	for _, name := range keyNames {
		k := defaultSection.Key(name)
		if shadows := k.ValueWithShadows(); len(shadows) > 0 {
			result[name] = shadows[len(shadows)-1]
		} else {
			result[name] = k.String()
		}
	}

	return result, keyNames, nil
}
