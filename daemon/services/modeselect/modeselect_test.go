package modeselect

import (
	"testing"

	"github.com/systemd-swap/swapd/daemon/domain"
)

func TestDecide(t *testing.T) {
	const ram = 8 << 30 // 8 GiB

	cases := []struct {
		name        string
		swapFS      string
		freeBytes   int64
		preferZswap bool
		want        domain.Mode
	}{
		{"unsupported filesystem", "vfat", 100 << 30, false, domain.ModeZram},
		{"insufficient free space", "btrfs", ram - 1, false, domain.ModeZram},
		{"btrfs with room, default", "btrfs", 100 << 30, false, domain.ModeZramSwapFC},
		{"xfs with room, default", "xfs", 100 << 30, false, domain.ModeZramSwapFC},
		{"ext4 with room, prefers zswap", "ext4", 100 << 30, true, domain.ModeZswapSwapFC},
		{"free space exactly equal to RAM", "btrfs", ram, false, domain.ModeZramSwapFC},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decide(tc.swapFS, tc.freeBytes, ram, tc.preferZswap)
			if got != tc.want {
				t.Errorf("decide(%q, %d, %d, %v) = %v, want %v",
					tc.swapFS, tc.freeBytes, ram, tc.preferZswap, got, tc.want)
			}
		})
	}
}
