package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/systemd-swap/swapd/daemon/domain"
)

func resolveConfig(t *testing.T, content string, ramKiB uint64) *domain.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swap.conf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := domain.Resolve([]string{path}, domain.BaseEnv(4, ramKiB))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return cfg
}

func TestBuildZramConfig(t *testing.T) {
	const ram = int64(8) << 30

	t.Run("percentage total size", func(t *testing.T) {
		cfg := resolveConfig(t, "zram_size=150%\nzram_max_count=4\n", 8<<20)
		zcfg, err := BuildZramConfig(cfg, ram)
		if err != nil {
			t.Fatalf("BuildZramConfig: %v", err)
		}
		if zcfg.TotalSize != ram+ram/2 {
			t.Errorf("TotalSize = %d, want %d", zcfg.TotalSize, ram+ram/2)
		}
		if zcfg.MaxCount != 4 {
			t.Errorf("MaxCount = %d, want 4", zcfg.MaxCount)
		}
	})

	t.Run("defaults to half of RAM", func(t *testing.T) {
		cfg := resolveConfig(t, "swap_mode=auto\n", 8<<20)
		zcfg, err := BuildZramConfig(cfg, ram)
		if err != nil {
			t.Fatalf("BuildZramConfig: %v", err)
		}
		if zcfg.TotalSize != ram/2 {
			t.Errorf("TotalSize = %d, want %d", zcfg.TotalSize, ram/2)
		}
	})

	t.Run("fixed per-device size wins", func(t *testing.T) {
		cfg := resolveConfig(t, "zram_device_size=1G\n", 8<<20)
		zcfg, err := BuildZramConfig(cfg, ram)
		if err != nil {
			t.Fatalf("BuildZramConfig: %v", err)
		}
		if zcfg.PerDeviceSize != 1<<30 {
			t.Errorf("PerDeviceSize = %d, want %d", zcfg.PerDeviceSize, int64(1)<<30)
		}
	})
}

func TestBuildSwapFCConfig(t *testing.T) {
	cfg := resolveConfig(t, `
swapfc_directory=/var/lib/systemd-swap/swapfc
swapfc_chunk_size=128M
swapfc_max_count=2
swapfc_sparse=yes
`, 8<<20)
	fcfg, err := BuildSwapFCConfig(cfg, 8<<30)
	if err != nil {
		t.Fatalf("BuildSwapFCConfig: %v", err)
	}
	if fcfg.ChunkSize != 128<<20 {
		t.Errorf("ChunkSize = %d, want %d", fcfg.ChunkSize, int64(128)<<20)
	}
	if fcfg.MaxCount != 2 || !fcfg.Sparse {
		t.Errorf("cfg = %+v", fcfg)
	}
	if fcfg.BasePriority != -2 {
		t.Errorf("BasePriority = %d, want -2", fcfg.BasePriority)
	}
}

func TestResolveModeConcrete(t *testing.T) {
	cfg := resolveConfig(t, "swap_mode=zram\n", 8<<20)
	mode, err := ResolveMode(&domain.Context{Config: cfg, RAMTotalBytes: 8 << 30})
	if err != nil {
		t.Fatalf("ResolveMode: %v", err)
	}
	if mode != domain.ModeZram {
		t.Errorf("mode = %v, want zram", mode)
	}
}

func TestResolveModeRejectsBadValue(t *testing.T) {
	cfg := resolveConfig(t, "swap_mode=bogus\n", 8<<20)
	if _, err := ResolveMode(&domain.Context{Config: cfg, RAMTotalBytes: 8 << 30}); err == nil {
		t.Fatal("ResolveMode should reject an unknown mode")
	}
}

func TestControllerEnabledManualMode(t *testing.T) {
	cfg := resolveConfig(t, "zram_enabled=1\nswapfc_enabled=0\n", 8<<20)
	s := New(&domain.Context{Config: cfg})
	s.mode = domain.ModeManual

	if !s.controllerEnabled(false, "zram_enabled") {
		t.Error("manual mode should honor zram_enabled=1")
	}
	if s.controllerEnabled(true, "swapfc_enabled") {
		t.Error("manual mode should honor swapfc_enabled=0 even when the mode default says on")
	}

	s.mode = domain.ModeZramSwapFC
	if !s.controllerEnabled(true, "swapfc_enabled") {
		t.Error("non-manual modes follow the mode's own combination")
	}
}

func TestRequiredBinariesPerMode(t *testing.T) {
	s := New(&domain.Context{})

	s.mode = domain.ModeZram
	bins := s.requiredBinaries()
	if !contains(bins, "zramctl") || contains(bins, "fallocate") {
		t.Errorf("zram binaries = %v", bins)
	}

	s.mode = domain.ModeZramSwapFC
	bins = s.requiredBinaries()
	for _, want := range []string{"findmnt", "mkswap", "swapon", "swapoff", "zramctl", "fallocate", "chattr", "losetup"} {
		if !contains(bins, want) {
			t.Errorf("zram+swapfc binaries missing %s: %v", want, bins)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestPercent(t *testing.T) {
	if got := percent(1, 4); got != 25 {
		t.Errorf("percent(1,4) = %v, want 25", got)
	}
	if got := percent(0, 0); got != 100 {
		t.Errorf("percent(0,0) = %v, want 100 (no swap configured means nothing is in use)", got)
	}
}
