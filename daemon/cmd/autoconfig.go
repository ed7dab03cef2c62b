package cmd

import (
	"fmt"

	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/services/supervisor"
)

// Autoconfig prints the concrete mode and parameters `auto` would choose
// on this host, without mutating anything.
type Autoconfig struct{}

// Run performs the same resolution `start` would, then reports it.
func (a *Autoconfig) Run(env *Env) error {
	appCtx, err := BuildContext(env)
	if err != nil {
		return err
	}

	mode, err := supervisor.ResolveMode(appCtx)
	if err != nil {
		return err
	}

	fmt.Printf("mode: %s\n", mode)

	if mode.UsesZram() {
		zcfg, err := supervisor.BuildZramConfig(appCtx.Config, appCtx.RAMTotalBytes)
		if err != nil {
			return err
		}
		count := zcfg.InitialCount(appCtx.NCPU)
		fmt.Printf("zram: %d devices, %s each, algorithm %s, priority %d\n",
			count, lib.FormatSize(zcfg.PerDeviceDisksize(count)), zcfg.Algorithm, zcfg.Priority)
	}

	if mode.UsesSwapFC() {
		fcfg, err := supervisor.BuildSwapFCConfig(appCtx.Config, appCtx.RAMTotalBytes)
		if err != nil {
			return err
		}
		fmt.Printf("swapfc: directory %s, chunk %s, up to %d files\n",
			fcfg.Directory, lib.FormatSize(fcfg.ChunkSize), fcfg.MaxCount)
	}

	if mode.UsesZswap() {
		fmt.Printf("zswap: compressor %s, zpool %s\n",
			appCtx.Config.String("zswap_compressor", "lz4"),
			appCtx.Config.String("zswap_zpool", "zsmalloc"))
	}

	return nil
}
