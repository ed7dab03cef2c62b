// Package zswap configures the kernel zswap compressed-cache module via its
// sysfs parameter interface, snapshotting prior values so stop can restore
// them exactly.
package zswap

import (
	"fmt"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/logger"
)

// ParametersPath is the sysfs directory holding zswap's tunables. Overridable
// in tests.
var ParametersPath = "/sys/module/zswap/parameters"

// orderedParams lists every target parameter in write order: enabled last at
// start, first at stop. criticalParams names the subset whose
// write failure aborts the mode at start.
var orderedParams = []string{"compressor", "zpool", "max_pool_percent", "accept_threshold_percent", "shrinker_enabled", "enabled"}

var criticalParams = map[string]bool{"enabled": true, "compressor": true}

// Controller applies and reverts the zswap parameter set.
type Controller struct {
	runtime domain.RuntimeDir
}

// New creates a Controller persisting its snapshot under runtime.
func New(runtime domain.RuntimeDir) *Controller {
	return &Controller{runtime: runtime}
}

const snapshotFile = "zswap.snapshot"

// Start reads each target parameter's current value, persists it to the
// runtime snapshot, then writes the desired value. enabled is written last.
// A failure writing a critical parameter aborts the mode; non-critical
// failures log a warning and continue.
func (c *Controller) Start(desired map[string]string) error {
	if !lib.SysfsExists(ParametersPath) {
		return domain.NewEnvironmentError("zswap", fmt.Errorf("zswap module not present at %s", ParametersPath))
	}

	path := c.runtime.StateFile(snapshotFile)
	snapshot := make(map[string]string, len(orderedParams))
	var keys []string
	for _, name := range orderedParams {
		value, ok := desired[name]
		if !ok {
			continue
		}

		current, err := lib.ReadSysfs(paramPath(name))
		if err != nil {
			if criticalParams[name] {
				return domain.NewEnvironmentError("zswap", fmt.Errorf("reading %s: %w", name, err))
			}
			logger.Warning("zswap: failed to read %s, skipping: %v", name, err)
			continue
		}
		keys = append(keys, name)
		snapshot[name] = current
		if err := domain.WriteKeyValueFile(path, keys, snapshot); err != nil {
			logger.Warning("zswap: failed to persist snapshot: %v", err)
		}

		if err := lib.WriteSysfs(paramPath(name), value); err != nil {
			if criticalParams[name] {
				return domain.NewEnvironmentError("zswap", fmt.Errorf("writing %s=%s: %w", name, value, err))
			}
			logger.Warning("zswap: failed to write %s=%s: %v", name, value, err)
			continue
		}
		logger.Debug("zswap: %s = %s (was %s)", name, value, current)
	}

	logger.Info("zswap: enabled")
	return nil
}

// Stop restores every captured parameter in reverse order (enabled first),
// ignoring individual restore failures after logging them — stop must never
// fail fatally.
func (c *Controller) Stop() {
	path := c.runtime.StateFile(snapshotFile)
	snapshot, err := domain.ReadKeyValueFile(path)
	if err != nil {
		logger.Warning("zswap: failed to read snapshot, cannot restore: %v", err)
		return
	}
	if len(snapshot) == 0 {
		return
	}

	for i := len(orderedParams) - 1; i >= 0; i-- {
		name := orderedParams[i]
		value, ok := snapshot[name]
		if !ok {
			continue
		}
		if err := lib.WriteSysfs(paramPath(name), value); err != nil {
			logger.Warning("zswap: failed to restore %s=%s: %v", name, value, err)
			continue
		}
		logger.Debug("zswap: restored %s = %s", name, value)
	}
	logger.Info("zswap: restored original configuration")
}

func paramPath(name string) string {
	return ParametersPath + "/" + name
}
