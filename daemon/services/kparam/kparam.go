// Package kparam manages the optional kernel-parameter lifecycle: THP mode,
// MGLRU min_ttl_ms, and selected vm sysctls. Parameters are
// read, snapshotted, and overwritten at start in a fixed order, and restored
// in reverse at stop.
package kparam

import (
	"fmt"
	"strings"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/logger"
)

// THPPath is the sysfs attribute controlling transparent hugepage mode.
var THPPath = "/sys/kernel/mm/transparent_hugepage/enabled"

// MGLRUPath is the sysfs attribute controlling the multi-gen LRU's minimum
// time-to-live for a generation, in milliseconds.
var MGLRUPath = "/sys/kernel/mm/lru_gen/min_ttl_ms"

// VMSysctlDir is the procfs directory holding vm.* sysctls.
var VMSysctlDir = "/proc/sys/vm"

// Param is one managed kernel parameter: a sysfs/procfs path plus the value
// to write at start.
type Param struct {
	Name  string // logical name, used as the snapshot key
	Path  string
	Value string
}

// THP builds the THP-mode parameter. mode is one of "always", "madvise", or
// "never".
func THP(mode string) Param { return Param{Name: "thp_mode", Path: THPPath, Value: mode} }

// MGLRU builds the MGLRU min_ttl_ms parameter.
func MGLRU(minTTLMs string) Param {
	return Param{Name: "mglru_min_ttl_ms", Path: MGLRUPath, Value: minTTLMs}
}

// VMSysctl builds a vm.<name> sysctl parameter.
func VMSysctl(name, value string) Param {
	return Param{Name: "vm_" + name, Path: VMSysctlDir + "/" + name, Value: value}
}

const snapshotFile = "kparam.snapshot"

// Controller applies and reverts an ordered set of kernel parameters.
type Controller struct {
	runtime domain.RuntimeDir
}

// New creates a Controller persisting its snapshot under runtime.
func New(runtime domain.RuntimeDir) *Controller {
	return &Controller{runtime: runtime}
}

// Start reads each parameter's current value, persists it, then writes the
// desired value, in the order given (callers pass THP before MGLRU before
// the vm sysctls). A parameter whose sysfs/procfs path
// doesn't exist on this kernel is skipped with a debug log, not an error —
// THP and MGLRU are both optional kernel features.
func (c *Controller) Start(params []Param) {
	snapshot := make(map[string]string, len(params))
	var keys []string

	for _, p := range params {
		if !lib.SysfsExists(p.Path) {
			logger.Debug("kparam: %s not present on this kernel, skipping", p.Name)
			continue
		}
		current, err := readParam(p.Path)
		if err != nil {
			logger.Warning("kparam: failed to read %s: %v", p.Name, err)
			continue
		}
		keys = append(keys, p.Name)
		snapshot[p.Name] = current

		if err := writeParam(p.Path, p.Value); err != nil {
			logger.Warning("kparam: failed to write %s=%s: %v", p.Name, p.Value, err)
			continue
		}
		logger.Debug("kparam: %s = %s (was %s)", p.Name, p.Value, current)
	}

	path := c.runtime.StateFile(snapshotFile)
	if err := domain.WriteKeyValueFile(path, keys, snapshot); err != nil {
		logger.Warning("kparam: failed to persist snapshot: %v", err)
	}
}

// Stop restores every captured parameter in the reverse order Start used
// (coarse vm sysctls first, MGLRU next, THP last), ignoring individual
// restore failures after logging them. params supplies each snapshot key's
// sysfs/procfs path, since the snapshot itself only stores values.
func (c *Controller) Stop(params []Param) {
	path := c.runtime.StateFile(snapshotFile)
	snapshot, err := domain.ReadKeyValueFile(path)
	if err != nil {
		logger.Warning("kparam: failed to read snapshot, cannot restore: %v", err)
		return
	}
	if len(snapshot) == 0 {
		return
	}

	for i := len(params) - 1; i >= 0; i-- {
		p := params[i]
		value, ok := snapshot[p.Name]
		if !ok {
			continue
		}
		if err := writeParam(p.Path, value); err != nil {
			logger.Warning("kparam: failed to restore %s=%s: %v", p.Name, value, err)
			continue
		}
		logger.Debug("kparam: restored %s = %s", p.Name, value)
	}
}

// readParam reads a kernel parameter, unwrapping THP's bracketed-choice
// display format (e.g. "always [madvise] never") to just the active word.
func readParam(path string) (string, error) {
	raw, err := lib.ReadSysfs(path)
	if err != nil {
		return "", err
	}
	if path == THPPath {
		return extractBracketed(raw), nil
	}
	return raw, nil
}

// writeParam writes a kernel parameter value as given. For THP that is the
// bare mode word readParam returns, which the attribute accepts on write.
func writeParam(path, value string) error {
	return lib.WriteSysfs(path, value)
}

// extractBracketed pulls the bracketed token out of a string like
// "always [madvise] never", returning "madvise". Returns s unchanged if no
// brackets are present.
func extractBracketed(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.IndexByte(s, ']')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start+1 : end]
}

// ValidateTHPMode checks that a THP mode string is one of the kernel's
// accepted values, returning a ConfigError otherwise.
func ValidateTHPMode(mode string) error {
	switch mode {
	case "always", "madvise", "never":
		return nil
	default:
		return domain.NewConfigError("thp_mode", fmt.Errorf("invalid THP mode %q, want always|madvise|never", mode))
	}
}
