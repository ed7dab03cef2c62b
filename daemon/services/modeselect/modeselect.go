// Package modeselect resolves domain.ModeAuto to a concrete mode at startup
// by inspecting the host filesystem layout.
package modeselect

import (
	"fmt"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/logger"
)

// liveImageTypes are root filesystem types that indicate an ephemeral,
// live-booted image where a swap file directory cannot be trusted to
// persist.
var liveImageTypes = map[string]bool{
	"tmpfs":    true,
	"squashfs": true,
	"overlay":  true,
}

// persistentFSTypes are the filesystem types the swap-file controller is
// allowed to place files on.
var persistentFSTypes = map[string]bool{
	"btrfs": true,
	"ext4":  true,
	"xfs":   true,
}

// Resolve picks the mode for this host via four ordered checks: live-image
// root, swap-directory filesystem support, free disk space against total
// RAM, and the zswap preference. swapFileDir is
// the configured swap-file directory; ramTotalBytes and preferZswap come
// from the resolved configuration (preferZswap is true when the config
// explicitly selects zswap over the zram+swapfc default).
func Resolve(swapFileDir string, ramTotalBytes int64, preferZswap bool) (domain.Mode, error) {
	rootFS, err := lib.FilesystemType("/")
	if err != nil {
		return "", fmt.Errorf("detecting root filesystem type: %w", err)
	}
	if liveImageTypes[rootFS] {
		logger.Info("autoconfig: root filesystem is %s (live image) -> zram", rootFS)
		return domain.ModeZram, nil
	}

	swapFS, err := lib.FilesystemType(swapFileDir)
	if err != nil {
		return "", fmt.Errorf("detecting swap directory filesystem type: %w", err)
	}
	if !persistentFSTypes[swapFS] {
		return decide(swapFS, 0, ramTotalBytes, preferZswap), nil
	}

	free, err := lib.FreeDiskSpace(swapFileDir)
	if err != nil {
		return "", fmt.Errorf("measuring free disk space under %s: %w", swapFileDir, err)
	}

	return decide(swapFS, free, ramTotalBytes, preferZswap), nil
}

// decide applies the filesystem, free-space, and zswap checks once the type and
// free-space figures are in hand, split out from Resolve so the decision
// table is testable without touching the filesystem.
func decide(swapFS string, freeBytes, ramTotalBytes int64, preferZswap bool) domain.Mode {
	if !persistentFSTypes[swapFS] {
		logger.Info("autoconfig: swap directory filesystem %s unsupported -> zram", swapFS)
		return domain.ModeZram
	}
	if freeBytes < ramTotalBytes {
		logger.Info("autoconfig: free disk space %d under total RAM %d -> zram", freeBytes, ramTotalBytes)
		return domain.ModeZram
	}
	if preferZswap {
		logger.Info("autoconfig: config selects zswap -> zswap+swapfc")
		return domain.ModeZswapSwapFC
	}
	logger.Info("autoconfig: all checks passed -> zram+swapfc")
	return domain.ModeZramSwapFC
}
