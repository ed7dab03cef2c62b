package meminfo

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleMeminfo = `MemTotal:       32653968 kB
MemFree:        15234568 kB
MemAvailable:   20123456 kB
Buffers:          512000 kB
Cached:          4876900 kB
SwapTotal:       8388604 kB
SwapFree:        8388604 kB
`

const sampleSwaps = `Filename				Type		Size		Used		Priority
/dev/zram0                              partition	2097148		0		100
/run/systemd-swap/swapfc/swap0          file		1048572		0		-2
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestReadMeminfoFields(t *testing.T) {
	path := writeTemp(t, "meminfo", sampleMeminfo)
	fields, err := readMeminfoFields(path)
	if err != nil {
		t.Fatalf("readMeminfoFields: %v", err)
	}
	if fields["MemTotal"] != 32653968 {
		t.Errorf("MemTotal = %d, want 32653968", fields["MemTotal"])
	}
	if fields["SwapFree"] != 8388604 {
		t.Errorf("SwapFree = %d, want 8388604", fields["SwapFree"])
	}
}

func TestReadSwapDevices(t *testing.T) {
	path := writeTemp(t, "swaps", sampleSwaps)
	devices, err := readSwapDevices(path)
	if err != nil {
		t.Fatalf("readSwapDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}
	if devices[0].Filename != "/dev/zram0" || devices[0].Type != "partition" {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if devices[0].Size != 2097148*1024 {
		t.Errorf("devices[0].Size = %d, want %d", devices[0].Size, 2097148*1024)
	}
	if devices[1].Priority != -2 {
		t.Errorf("devices[1].Priority = %d, want -2", devices[1].Priority)
	}
}

func TestSampleUsed(t *testing.T) {
	s := Sample{MemTotal: 1000, MemFree: 200, Buffers: 50, Cached: 150}
	if got := s.Used(); got != 600 {
		t.Errorf("Used() = %d, want 600", got)
	}

	s2 := Sample{SwapTotal: 8388608, SwapFree: 1000000}
	if got := s2.SwapUsed(); got != 8388608-1000000 {
		t.Errorf("SwapUsed() = %d, want %d", got, 8388608-1000000)
	}
}
