// Package status builds the human-readable status report the `status` CLI
// command prints, and exports the same figures as Prometheus metrics via
// the node-exporter textfile-collector convention — the headless
// equivalent of an HTTP /metrics endpoint for a daemon with no CLI/HTTP
// veneer of its own.
package status

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/services/meminfo"
	"github.com/systemd-swap/swapd/daemon/services/swapfc"
	"github.com/systemd-swap/swapd/daemon/services/zram"
)

// Report is a point-in-time snapshot of the daemon's swap configuration,
// assembled by reading runtime state and sysfs directly — `status` requires
// no lock.
type Report struct {
	Running bool
	PID     int
	Mode    domain.Mode

	Memory meminfo.Sample

	ZramDevices  []zram.Device
	SwapFiles    []swapfc.File
	ZswapEnabled bool
}

// Render formats a Report as the multi-line human-readable text the
// `status` command prints to stdout.
func Render(r Report) string {
	var b strings.Builder

	if r.Running {
		fmt.Fprintf(&b, "systemd-swap: running (pid %d, mode %s)\n", r.PID, r.Mode)
	} else {
		fmt.Fprintf(&b, "systemd-swap: not running\n")
	}

	fmt.Fprintf(&b, "\nMemory:\n")
	fmt.Fprintf(&b, "  total:     %s\n", lib.FormatSize(int64(r.Memory.MemTotal)))
	fmt.Fprintf(&b, "  free:      %s\n", lib.FormatSize(int64(r.Memory.MemFree)))
	fmt.Fprintf(&b, "  available: %s\n", lib.FormatSize(int64(r.Memory.MemAvailable)))
	fmt.Fprintf(&b, "  swap used: %s / %s\n", lib.FormatSize(int64(r.Memory.SwapUsed())), lib.FormatSize(int64(r.Memory.SwapTotal)))

	if r.ZswapEnabled {
		fmt.Fprintf(&b, "\nzswap: enabled\n")
	}

	if len(r.ZramDevices) > 0 {
		fmt.Fprintf(&b, "\nzram pool (%d devices):\n", len(r.ZramDevices))
		for _, d := range r.ZramDevices {
			fmt.Fprintf(&b, "  %s  %s  %s  priority=%d  state=%s\n", d.Path(), d.Algorithm, lib.FormatSize(d.Disksize), d.Priority, d.State)
		}
	}

	if len(r.SwapFiles) > 0 {
		fmt.Fprintf(&b, "\nswap files (%d):\n", len(r.SwapFiles))
		for _, f := range r.SwapFiles {
			fmt.Fprintf(&b, "  %s  %s  priority=%d  state=%s\n", f.Path, lib.FormatSize(f.Size), f.Priority, f.State)
		}
	}

	return b.String()
}

// Exporter maintains the Prometheus gauges backing the textfile export.
type Exporter struct {
	registry *prometheus.Registry

	running       prometheus.Gauge
	zramCount     prometheus.Gauge
	zramBytes     prometheus.Gauge
	swapfileCount prometheus.Gauge
	swapfileBytes prometheus.Gauge
	swapUsedBytes prometheus.Gauge
	freeRAMBytes  prometheus.Gauge
}

// NewExporter creates an Exporter with a fresh, private registry (not the
// global default — the daemon has no HTTP surface to expose it over, and a
// private registry keeps concurrent textfile writes self-contained).
func NewExporter() *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.running = prometheus.NewGauge(prometheus.GaugeOpts{Name: "systemd_swap_running", Help: "Whether the daemon is running (1) or not (0)."})
	e.zramCount = prometheus.NewGauge(prometheus.GaugeOpts{Name: "systemd_swap_zram_devices", Help: "Number of zram devices in the pool."})
	e.zramBytes = prometheus.NewGauge(prometheus.GaugeOpts{Name: "systemd_swap_zram_disksize_bytes", Help: "Total configured disksize across the zram pool."})
	e.swapfileCount = prometheus.NewGauge(prometheus.GaugeOpts{Name: "systemd_swap_swapfiles", Help: "Number of daemon-managed swap files."})
	e.swapfileBytes = prometheus.NewGauge(prometheus.GaugeOpts{Name: "systemd_swap_swapfile_bytes", Help: "Total size across daemon-managed swap files."})
	e.swapUsedBytes = prometheus.NewGauge(prometheus.GaugeOpts{Name: "systemd_swap_swap_used_bytes", Help: "Bytes of swap currently in use."})
	e.freeRAMBytes = prometheus.NewGauge(prometheus.GaugeOpts{Name: "systemd_swap_free_ram_bytes", Help: "Free RAM in bytes at last sample."})

	e.registry.MustRegister(e.running, e.zramCount, e.zramBytes, e.swapfileCount, e.swapfileBytes, e.swapUsedBytes, e.freeRAMBytes)
	return e
}

// Update sets every gauge from a fresh Report.
func (e *Exporter) Update(r Report) {
	if r.Running {
		e.running.Set(1)
	} else {
		e.running.Set(0)
	}

	e.zramCount.Set(float64(len(r.ZramDevices)))
	var zramBytes int64
	for _, d := range r.ZramDevices {
		zramBytes += d.Disksize
	}
	e.zramBytes.Set(float64(zramBytes))

	e.swapfileCount.Set(float64(len(r.SwapFiles)))
	var swapfileBytes int64
	for _, f := range r.SwapFiles {
		swapfileBytes += f.Size
	}
	e.swapfileBytes.Set(float64(swapfileBytes))

	e.swapUsedBytes.Set(float64(r.Memory.SwapUsed()))
	e.freeRAMBytes.Set(float64(r.Memory.MemFree))
}

// WriteTextfile gathers the registry and writes it in the node-exporter
// textfile-collector format: an atomic rename into place so the collector
// never reads a partially-written file.
func (e *Exporter) WriteTextfile(path string) error {
	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp) //nolint:gosec // G304: path is operator-configured, not user input
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	encoder := expfmt.NewEncoder(file, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			file.Close()
			os.Remove(tmp)
			return fmt.Errorf("encoding metric family %s: %w", mf.GetName(), err)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// RunPeriodic refreshes the textfile export on interval until stopped by
// closing done, mirroring the monitor-loop ticker idiom every other
// controller uses.
func (e *Exporter) RunPeriodic(path string, interval time.Duration, getReport func() Report, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.Update(getReport())
			_ = e.WriteTextfile(path)
		}
	}
}
