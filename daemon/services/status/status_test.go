package status

import (
	"os"
	"strings"
	"testing"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/services/meminfo"
	"github.com/systemd-swap/swapd/daemon/services/zram"
)

func TestRenderNotRunning(t *testing.T) {
	out := Render(Report{Running: false})
	if !strings.Contains(out, "not running") {
		t.Errorf("Render() = %q, want it to mention not running", out)
	}
}

func TestRenderRunningWithDevices(t *testing.T) {
	r := Report{
		Running: true,
		PID:     1234,
		Mode:    domain.ModeZramSwapFC,
		Memory:  meminfo.Sample{MemTotal: 1000, MemFree: 500},
		ZramDevices: []zram.Device{
			{Index: 0, Disksize: 100, Algorithm: "zstd", Priority: 100, State: zram.StateActive},
		},
	}
	out := Render(r)
	if !strings.Contains(out, "pid 1234") {
		t.Errorf("Render() missing pid: %q", out)
	}
	if !strings.Contains(out, "/dev/zram0") {
		t.Errorf("Render() missing device path: %q", out)
	}
}

func TestExporterWriteTextfile(t *testing.T) {
	e := NewExporter()
	e.Update(Report{
		Running: true,
		Memory:  meminfo.Sample{MemFree: 123, SwapTotal: 1000, SwapFree: 900},
	})

	path := t.TempDir() + "/systemd-swap.prom"
	if err := e.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	data := string(raw)
	if !strings.Contains(data, "systemd_swap_running 1") {
		t.Errorf("output missing running gauge: %q", data)
	}
	if !strings.Contains(data, "systemd_swap_swap_used_bytes 100") {
		t.Errorf("output missing swap used gauge: %q", data)
	}
}
