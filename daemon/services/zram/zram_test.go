package zram

import (
	"os"
	"testing"

	"github.com/systemd-swap/swapd/daemon/domain"
)

func TestConfigInitialCount(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ncpu int
		want int
	}{
		{"ncpu within bounds", Config{MinCount: 1, MaxCount: 8}, 4, 4},
		{"ncpu exceeds max", Config{MinCount: 1, MaxCount: 4}, 16, 4},
		{"ncpu below min", Config{MinCount: 2, MaxCount: 8}, 1, 2},
		{"zero ncpu clamps to at least 1", Config{MinCount: 0, MaxCount: 8}, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.InitialCount(tc.ncpu); got != tc.want {
				t.Errorf("InitialCount(%d) = %d, want %d", tc.ncpu, got, tc.want)
			}
		})
	}
}

func TestConfigPerDeviceDisksize(t *testing.T) {
	t.Run("fixed size wins", func(t *testing.T) {
		cfg := Config{PerDeviceSize: 1 << 30, TotalSize: 100 << 30}
		if got := cfg.PerDeviceDisksize(4); got != 1<<30 {
			t.Errorf("PerDeviceDisksize = %d, want %d", got, 1<<30)
		}
	})
	t.Run("divides total across count", func(t *testing.T) {
		cfg := Config{TotalSize: 12 << 30}
		if got := cfg.PerDeviceDisksize(4); got != 3<<30 {
			t.Errorf("PerDeviceDisksize = %d, want %d", got, 3<<30)
		}
	})
	t.Run("zero count treated as one", func(t *testing.T) {
		cfg := Config{TotalSize: 5 << 30}
		if got := cfg.PerDeviceDisksize(0); got != 5<<30 {
			t.Errorf("PerDeviceDisksize = %d, want %d", got, 5<<30)
		}
	})
}

func TestReadActiveAlgorithm(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/comp_algorithm", "lzo [zstd] lz4\n")
	got, err := readActiveAlgorithm(dir)
	if err != nil {
		t.Fatalf("readActiveAlgorithm: %v", err)
	}
	if got != "zstd" {
		t.Errorf("readActiveAlgorithm = %q, want %q", got, "zstd")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadStateRoundTrip(t *testing.T) {
	runtime, err := domain.NewRuntimeDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewRuntimeDir: %v", err)
	}
	p := New(Config{Algorithm: "zstd", Priority: 100}, runtime, nil)
	p.devices[0] = &Device{Index: 0, Disksize: 1 << 30, Algorithm: "zstd", Priority: 100, State: StateActive}
	p.devices[2] = &Device{Index: 2, Disksize: 2 << 30, Algorithm: "zstd", Priority: 100, State: StateActive}
	p.persist()

	devices := LoadState(runtime)
	if len(devices) != 2 {
		t.Fatalf("LoadState returned %d devices, want 2", len(devices))
	}
	if devices[0].Index != 0 || devices[1].Index != 2 {
		t.Errorf("LoadState order = %d,%d, want 0,2", devices[0].Index, devices[1].Index)
	}
	if devices[1].Disksize != 2<<30 || devices[1].Algorithm != "zstd" || devices[1].Priority != 100 {
		t.Errorf("LoadState[1] = %+v", devices[1])
	}
}

func TestParseRecordRejectsGarbage(t *testing.T) {
	cases := []string{"", "zstd", "zstd notanumber 100", "zstd 1024 notanumber", "a b c d"}
	for _, record := range cases {
		if _, ok := parseRecord(0, record); ok {
			t.Errorf("parseRecord(%q) should be rejected", record)
		}
	}
}
