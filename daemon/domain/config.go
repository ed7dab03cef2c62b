// Package domain provides the daemon's core data model: the resolved
// configuration, the swap mode, the runtime context shared by every
// controller, and the typed event bus controllers publish state changes on.
package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/systemd-swap/swapd/daemon/lib"
)

// Config is a resolved, ordered key/value configuration. It is parsed once
// at start and immutable thereafter: nothing in the daemon
// mutates a Config after Resolve returns it.
type Config struct {
	values map[string]string
}

// Has reports whether key was set by any layer.
func (c *Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// String returns the raw resolved value for key, or def if unset.
func (c *Config) String(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// RequireString returns the raw resolved value for key, failing with a
// *ConfigError if it is not set.
func (c *Config) RequireString(key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", NewConfigError(key, fmt.Errorf("required key is missing"))
	}
	return v, nil
}

// Int coerces key to an integer, returning def if unset.
func (c *Config) Int(key string, def int) (int, error) {
	v, ok := c.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, NewConfigError(key, fmt.Errorf("not an integer: %q", v))
	}
	return n, nil
}

// Size coerces key to a byte count: K/M/G/T power-of-1024 suffixes, a
// trailing "%" of RAM, decimal values.
// ramTotalBytes is required when the value uses a percentage suffix.
func (c *Config) Size(key string, def int64, ramTotalBytes int64) (int64, error) {
	v, ok := c.values[key]
	if !ok {
		return def, nil
	}
	n, err := lib.ParseSize(v, ramTotalBytes)
	if err != nil {
		return 0, NewConfigError(key, err)
	}
	return n, nil
}

// Bool coerces key: 0/1, true/false, yes/no, on/off, case-insensitive.
func (c *Config) Bool(key string, def bool) (bool, error) {
	v, ok := c.values[key]
	if !ok {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, NewConfigError(key, fmt.Errorf("not a boolean: %q", v))
	}
}

// Enum coerces key to one of allowed (exact match), failing with a
// start-time fatal *ConfigError on any other value.
func (c *Config) Enum(key, def string, allowed ...string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		v = def
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", NewConfigError(key, fmt.Errorf("value %q is not one of %v", v, allowed))
}

// Keys returns every resolved key in sorted order, used by snapshot
// persistence and status reporting to dump the full resolved configuration
// byte-stably across runs.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
