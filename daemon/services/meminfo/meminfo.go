// Package meminfo samples /proc/meminfo and /proc/swaps on a fixed interval
// and publishes the result to the event bus, generalizing the system
// collector's one-shot getMemoryInfo into the continuous sampler every
// swap controller's monitor loop reacts to.
package meminfo

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/logger"
)

// Sample is a point-in-time snapshot of kernel memory and swap accounting,
// all fields in bytes unless noted.
type Sample struct {
	Time time.Time

	MemTotal     uint64
	MemFree      uint64
	MemAvailable uint64
	Buffers      uint64
	Cached       uint64
	SwapTotal    uint64
	SwapFree     uint64

	// Devices lists every active swap device/file from /proc/swaps.
	Devices []SwapDevice
}

// Used returns memory in use, excluding reclaimable buffers/cache.
func (s Sample) Used() uint64 {
	return s.MemTotal - s.MemFree - s.Buffers - s.Cached
}

// SwapUsed returns bytes of swap currently in use.
func (s Sample) SwapUsed() uint64 {
	return s.SwapTotal - s.SwapFree
}

// SwapDevice is one line of /proc/swaps.
type SwapDevice struct {
	Filename string
	Type     string // "partition" or "file"
	Size     uint64 // bytes
	Used     uint64 // bytes
	Priority int
}

// Topic carries every published Sample.
var Topic = domain.NewTopic[Sample]("meminfo.sample")

// Sampler periodically reads /proc/meminfo and /proc/swaps and publishes a
// Sample to the event bus.
type Sampler struct {
	hub *domain.EventBus
}

// New creates a Sampler publishing onto hub.
func New(hub *domain.EventBus) *Sampler {
	return &Sampler{hub: hub}
}

// Run samples once immediately, then on every tick of interval, until ctx
// is cancelled. Runs in its own goroutine, mirroring the collector ticker
// idiom used throughout the daemon.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) {
	s.tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sampler) tick() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("meminfo: sampler panic: %v", r)
		}
	}()
	sample, err := Read()
	if err != nil {
		logger.Warning("meminfo: sample failed: %v", err)
		return
	}
	domain.Publish(s.hub, Topic, sample)
}

// PageSize returns the system page size, for converting page-denominated
// kernel counters to bytes.
func PageSize() int { return os.Getpagesize() }

// CPUCount returns the number of online CPUs.
func CPUCount() int { return runtime.NumCPU() }

// Read takes a single synchronous sample, used both by the periodic
// Sampler and by callers that need an immediate reading (e.g. the startup
// context build and the status command).
func Read() (Sample, error) {
	fields, err := readMeminfoFields("/proc/meminfo")
	if err != nil {
		return Sample{}, err
	}
	devices, err := readSwapDevices("/proc/swaps")
	if err != nil {
		return Sample{}, err
	}

	kib := func(key string) uint64 { return fields[key] * 1024 }
	return Sample{
		Time:         time.Now(),
		MemTotal:     kib("MemTotal"),
		MemFree:      kib("MemFree"),
		MemAvailable: kib("MemAvailable"),
		Buffers:      kib("Buffers"),
		Cached:       kib("Cached"),
		SwapTotal:    kib("SwapTotal"),
		SwapFree:     kib("SwapFree"),
		Devices:      devices,
	}, nil
}

func readMeminfoFields(path string) (map[string]uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	fields := make(map[string]uint64)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		key := strings.TrimSuffix(parts[0], ":")
		fields[key] = lib.ParseUint64(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return fields, nil
}

func readSwapDevices(path string) ([]SwapDevice, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var devices []SwapDevice
	scanner := bufio.NewScanner(file)
	scanner.Scan() // header line: Filename Type Size Used Priority
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		devices = append(devices, SwapDevice{
			Filename: fields[0],
			Type:     fields[1],
			Size:     lib.ParseUint64(fields[2]) * 1024,
			Used:     lib.ParseUint64(fields[3]) * 1024,
			Priority: lib.ParseInt(fields[4]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return devices, nil
}
