package cmd

import (
	"fmt"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/logger"
	"github.com/systemd-swap/swapd/daemon/services/meminfo"
	"github.com/systemd-swap/swapd/daemon/services/status"
	"github.com/systemd-swap/swapd/daemon/services/swapfc"
	"github.com/systemd-swap/swapd/daemon/services/zram"
	"github.com/systemd-swap/swapd/daemon/services/zswap"
)

// Status prints a human-readable report of the daemon's swap
// configuration. It reads runtime state and sysfs directly and requires no
// lock; it always exits zero.
type Status struct{}

// Run assembles a status.Report from the runtime directory the running (or
// last-run) instance persisted, plus a fresh meminfo sample.
func (s *Status) Run(env *Env) error {
	rt, err := domain.NewRuntimeDir(env.RuntimeDir)
	if err != nil {
		logger.Warning("status: runtime directory unavailable: %v", err)
		fmt.Print(status.Render(status.Report{}))
		return nil
	}

	report := status.Report{}

	pid, err := domain.ReadLockedPID(rt)
	if err != nil {
		logger.Warning("status: reading lock file: %v", err)
	}
	report.Running = pid != 0
	report.PID = pid
	report.Mode = domain.ReadPersistedMode(rt)

	if sample, err := meminfo.Read(); err != nil {
		logger.Warning("status: sampling meminfo: %v", err)
	} else {
		report.Memory = sample
	}

	report.ZramDevices = zram.LoadState(rt)
	report.SwapFiles = swapfc.LoadState(rt)

	if enabled, err := lib.ReadSysfs(zswap.ParametersPath + "/enabled"); err == nil {
		report.ZswapEnabled = enabled == "Y" || enabled == "1"
	}

	fmt.Print(status.Render(report))
	return nil
}
