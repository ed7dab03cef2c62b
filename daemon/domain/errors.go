package domain

import "fmt"

// ConfigError indicates a problem resolving the layered configuration: an
// unresolved variable reference, a bad typed coercion, or a missing required
// key. Fatal at start.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config error: %v", e.Err)
	}
	return fmt.Sprintf("config error for %q: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError attributed to key (key may be empty).
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{Key: key, Err: err}
}

// EnvironmentError indicates a missing kernel module, missing external
// binary, or insufficient privileges. Fatal at start, except for the zswap
// mode which may be gracefully skipped.
type EnvironmentError struct {
	Component string
	Err       error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment error in %s: %v", e.Component, e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// NewEnvironmentError wraps err as an EnvironmentError for the named component.
func NewEnvironmentError(component string, err error) *EnvironmentError {
	return &EnvironmentError{Component: component, Err: err}
}

// ResourceError indicates a failure to create a zram device, allocate a swap
// file, or swapon — non-fatal, the owning controller retries or reduces
// ambition.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource error during %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// NewResourceError wraps err as a ResourceError for the named operation.
func NewResourceError(op string, err error) *ResourceError {
	return &ResourceError{Op: op, Err: err}
}

// InvariantError indicates the daemon's runtime state disagrees with sysfs
// in a way it cannot reconcile (e.g. a device it owns has disappeared). The
// caller logs it and drops the entry from runtime state — it never attempts
// to fabricate the missing resource.
type InvariantError struct {
	What string
	Err  error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated for %s: %v", e.What, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// NewInvariantError wraps err as an InvariantError about what.
func NewInvariantError(what string, err error) *InvariantError {
	return &InvariantError{What: what, Err: err}
}

// ShutdownError indicates a best-effort restore failure at stop. It is
// logged and never propagated to the process exit code.
type ShutdownError struct {
	Op  string
	Err error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown restore failed for %s: %v", e.Op, e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }

// NewShutdownError wraps err as a ShutdownError for the named restore operation.
func NewShutdownError(op string, err error) *ShutdownError {
	return &ShutdownError{Op: op, Err: err}
}
