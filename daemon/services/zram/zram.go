// Package zram manages a pool of kernel zram compressed-swap devices: initial
// sizing, creation, teardown, and adoption of devices already present at
// startup.
package zram

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/logger"
)

// ControlPath is the sysfs class directory for the zram hot_add/hot_remove
// interface. Overridable in tests.
var ControlPath = "/sys/class/zram-control"

// BlockPathFormat is the sysfs directory for a given zram device index.
var BlockPathFormat = "/sys/block/zram%d"

func blockPath(index int) string { return fmt.Sprintf(BlockPathFormat, index) }

// State is a zram device's lifecycle state.
type State string

const (
	StateCreated  State = "created"
	StateActive   State = "active"
	StateIdle     State = "idle"
	StateRemoving State = "removing"
)

// Device is one pool member.
type Device struct {
	Index        int
	Disksize     int64
	Algorithm    string
	Priority     int
	WritebackDev string
	State        State
	IdleSince    time.Time
}

// Path returns the device node the daemon swapon'd, e.g. /dev/zram3.
func (d Device) Path() string {
	return fmt.Sprintf("/dev/zram%d", d.Index)
}

// Config parameterizes a Pool's creation and sizing decisions.
type Config struct {
	Algorithm string
	Priority  int
	MinCount  int
	MaxCount  int
	// WritebackDev, when set, is written to each device's backing_dev so
	// zram can evict idle pages to it.
	WritebackDev string
	// PerDeviceSize, when non-zero, fixes every device's disksize. Otherwise
	// disksize is computed as TotalSize / steady-state count.
	PerDeviceSize int64
	// TotalSize is the pool's aggregate disksize target (e.g. 150% of RAM),
	// divided across InitialCount() devices when PerDeviceSize is zero.
	TotalSize int64
}

// InitialCount returns the starting pool size: min(NCPU, MaxCount), clamped
// to at least MinCount.
func (c Config) InitialCount(ncpu int) int {
	n := ncpu
	if n > c.MaxCount {
		n = c.MaxCount
	}
	if n < c.MinCount {
		n = c.MinCount
	}
	if n < 1 {
		n = 1
	}
	return n
}

// PerDeviceDisksize returns the disksize each device in a pool of the given
// steady-state count should have.
func (c Config) PerDeviceDisksize(count int) int64 {
	if c.PerDeviceSize > 0 {
		return c.PerDeviceSize
	}
	if count < 1 {
		count = 1
	}
	return c.TotalSize / int64(count)
}

const snapshotFile = "zram.pool"

// TopicCreated and TopicRemoved carry pool membership changes; a Device is
// published on each creation and removal. No daemon component subscribes to
// them.
var (
	TopicCreated = domain.NewTopic[Device]("zram.device.created")
	TopicRemoved = domain.NewTopic[Device]("zram.device.removed")
)

// Pool owns a set of zram devices and persists its membership to the
// runtime directory so a restarted daemon can adopt them.
type Pool struct {
	cfg     Config
	runtime domain.RuntimeDir
	hub     *domain.EventBus

	mu      sync.Mutex
	devices map[int]*Device
}

// New creates an empty Pool.
func New(cfg Config, runtime domain.RuntimeDir, hub *domain.EventBus) *Pool {
	return &Pool{cfg: cfg, runtime: runtime, hub: hub, devices: make(map[int]*Device)}
}

// Devices returns a snapshot slice of the pool's current members.
func (p *Pool) Devices() []Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Device, 0, len(p.devices))
	for _, d := range p.devices {
		out = append(out, *d)
	}
	return out
}

func (p *Pool) publish(topic domain.Topic[Device], d Device) {
	if p.hub == nil {
		return
	}
	domain.Publish(p.hub, topic, d)
}

// hotAdd obtains a free zram index from the kernel's hot_add interface: the
// kernel instantiates a new device as a side effect of *reading* this
// attribute and returns its index as the read value.
func hotAdd() (int, error) {
	s, err := lib.ReadSysfs(ControlPath + "/hot_add")
	if err != nil {
		return 0, fmt.Errorf("hot_add: %w", err)
	}
	index, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("hot_add returned non-integer %q: %w", s, err)
	}
	return index, nil
}

// hotRemove releases a zram device's minor number back to the kernel.
func hotRemove(index int) error {
	return lib.WriteSysfs(ControlPath+"/hot_remove", strconv.Itoa(index))
}

// CreateDevice provisions one new zram device end to end: hot_add, sysfs
// parameter writes, mkswap, swapon. Any failed step tears the device back
// down best-effort before returning the error.
func (p *Pool) CreateDevice(disksize int64) (*Device, error) {
	index, err := hotAdd()
	if err != nil {
		return nil, domain.NewResourceError("zram hot_add", err)
	}

	d := &Device{
		Index:        index,
		Disksize:     disksize,
		Algorithm:    p.cfg.Algorithm,
		Priority:     p.cfg.Priority,
		WritebackDev: p.cfg.WritebackDev,
		State:        StateCreated,
	}

	if err := p.provision(d); err != nil {
		logger.Warning("zram: provisioning device %d failed, tearing down: %v", index, err)
		p.teardown(d)
		return nil, domain.NewResourceError("zram device provision", err)
	}

	d.State = StateActive
	d.IdleSince = time.Time{}
	p.devices[index] = d
	p.persist()
	p.publish(TopicCreated, *d)
	logger.Info("zram: created device %s (%d bytes, %s)", d.Path(), d.Disksize, d.Algorithm)
	return d, nil
}

func (p *Pool) provision(d *Device) error {
	path := blockPath(d.Index)

	if err := lib.WriteSysfs(path+"/comp_algorithm", d.Algorithm); err != nil {
		return fmt.Errorf("writing comp_algorithm: %w", err)
	}
	if err := lib.WriteSysfs(path+"/disksize", strconv.FormatInt(d.Disksize, 10)); err != nil {
		return fmt.Errorf("writing disksize: %w", err)
	}
	if d.WritebackDev != "" {
		if err := lib.WriteSysfs(path+"/backing_dev", d.WritebackDev); err != nil {
			return fmt.Errorf("writing backing_dev: %w", err)
		}
	}

	if _, err := lib.ExecCommand("mkswap", d.Path()); err != nil {
		return fmt.Errorf("mkswap %s: %w", d.Path(), err)
	}

	if _, err := lib.ExecCommand("swapon", "-p", strconv.Itoa(d.Priority), d.Path()); err != nil {
		return fmt.Errorf("swapon %s: %w", d.Path(), err)
	}

	return nil
}

// RemoveDevice tears a device down: swapoff, wait for stored pages to
// drain, zramctl --reset, hot_remove.
func (p *Pool) RemoveDevice(index int, drainDeadline time.Duration) error {
	d, ok := p.devices[index]
	if !ok {
		return domain.NewInvariantError("zram pool", fmt.Errorf("device %d not owned by this pool", index))
	}
	d.State = StateRemoving

	if _, err := lib.ExecCommand("swapoff", d.Path()); err != nil {
		logger.Warning("zram: swapoff %s failed, proceeding anyway: %v", d.Path(), err)
	}

	p.waitForDrain(d.Index, drainDeadline)
	p.teardown(d)

	delete(p.devices, index)
	p.persist()
	p.publish(TopicRemoved, *d)
	logger.Info("zram: removed device %s", d.Path())
	return nil
}

// waitForDrain polls stored_pages until it reaches zero or the deadline
// elapses, in which case removal proceeds to a force-reset anyway.
func (p *Pool) waitForDrain(index int, deadline time.Duration) {
	if deadline <= 0 {
		return
	}
	path := blockPath(index)
	stop := time.Now().Add(deadline)
	for time.Now().Before(stop) {
		pages, err := storedPages(path)
		if err != nil || pages == 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Warning("zram: device %d still has stored pages after deadline, forcing reset", index)
}

// teardown best-effort releases a partially- or fully-provisioned device:
// swapoff, zramctl --reset, hot_remove, ignoring individual failures.
func (p *Pool) teardown(d *Device) {
	_, _ = lib.ExecCommand("swapoff", d.Path())
	if _, err := lib.ExecCommand("zramctl", "--reset", d.Path()); err != nil {
		logger.Warning("zram: zramctl --reset %s failed: %v", d.Path(), err)
	}
	if err := hotRemove(d.Index); err != nil {
		logger.Warning("zram: hot_remove %d failed: %v", d.Index, err)
	}
}

// storedPages reads mm_stat and returns the device's current stored page
// count, derived from orig_data_size (mm_stat's first field) divided by the
// system page size.
func storedPages(devicePath string) (int64, error) {
	raw, err := lib.ReadSysfs(devicePath + "/mm_stat")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty mm_stat")
	}
	origDataSize, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, err
	}
	return origDataSize / int64(pageSize()), nil
}

// memUsedTotal reads mm_stat's third field: total bytes of physical memory
// this device currently consumes (post-compression, plus overhead).
func memUsedTotal(devicePath string) (int64, error) {
	raw, err := lib.ReadSysfs(devicePath + "/mm_stat")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return 0, fmt.Errorf("mm_stat has too few fields: %q", raw)
	}
	return strconv.ParseInt(fields[2], 10, 64)
}

func pageSize() int {
	return os.Getpagesize()
}

// ExistingDeviceIndexes enumerates the zram devices currently present in
// sysfs, whoever owns them. Candidates for Adopt.
func ExistingDeviceIndexes() []int {
	dir := filepath.Dir(blockPath(0))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var indexes []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "zram") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(name, "zram"))
		if err != nil {
			continue
		}
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	return indexes
}

// parseRecord decodes one persisted pool entry ("algorithm disksize
// priority").
func parseRecord(index int, record string) (Device, bool) {
	parts := strings.Fields(record)
	if len(parts) != 3 {
		return Device{}, false
	}
	disksize, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Device{}, false
	}
	priority, err := strconv.Atoi(parts[2])
	if err != nil {
		return Device{}, false
	}
	return Device{
		Index:     index,
		Disksize:  disksize,
		Algorithm: parts[0],
		Priority:  priority,
		State:     StateActive,
	}, true
}

// LoadState reads the pool membership a running (or crashed) instance
// persisted, for the read-only status report. It does not verify the
// devices against sysfs; Adopt does that before taking ownership.
func LoadState(runtime domain.RuntimeDir) []Device {
	persisted, err := domain.ReadKeyValueFile(runtime.StateFile(snapshotFile))
	if err != nil {
		return nil
	}
	var devices []Device
	for key, record := range persisted {
		index, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if d, ok := parseRecord(index, record); ok {
			devices = append(devices, d)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Index < devices[j].Index })
	return devices
}

// persist writes the pool's current membership to the runtime directory so
// a future restart can consider adopting these devices.
func (p *Pool) persist() {
	keys := make([]string, 0, len(p.devices))
	values := make(map[string]string, len(p.devices))
	for index, d := range p.devices {
		key := strconv.Itoa(index)
		keys = append(keys, key)
		values[key] = fmt.Sprintf("%s %d %d", d.Algorithm, d.Disksize, d.Priority)
	}
	sort.Strings(keys)
	path := p.runtime.StateFile(snapshotFile)
	if err := domain.WriteKeyValueFile(path, keys, values); err != nil {
		logger.Warning("zram: failed to persist pool state: %v", err)
	}
}

// Adopt enumerates zram devices already present at startup and adds to the
// pool any whose sysfs attributes match cfg.Algorithm/disksize and which
// appear in the persisted runtime state. Devices failing either test are left untouched — they may be
// owned by something else.
func (p *Pool) Adopt(indexes []int) {
	persisted, err := domain.ReadKeyValueFile(p.runtime.StateFile(snapshotFile))
	if err != nil {
		logger.Warning("zram: failed to read persisted pool state, skipping adoption: %v", err)
		return
	}

	for _, index := range indexes {
		key := strconv.Itoa(index)
		record, ok := persisted[key]
		if !ok {
			continue
		}

		path := blockPath(index)
		algorithm, err := readActiveAlgorithm(path)
		if err != nil {
			continue
		}
		disksize, err := lib.ReadSysfsInt64(path + "/disksize")
		if err != nil {
			continue
		}

		d, ok := parseRecord(index, record)
		if !ok || d.Algorithm != algorithm || d.Disksize != disksize {
			logger.Info("zram: device %d sysfs state no longer matches persisted record, not adopting", index)
			continue
		}

		p.devices[index] = &d
		logger.Info("zram: adopted existing device %s", d.Path())
	}
}

// readActiveAlgorithm parses comp_algorithm's bracketed-choice display
// format (e.g. "lzo [zstd] lz4") down to the active word.
func readActiveAlgorithm(devicePath string) (string, error) {
	raw, err := lib.ReadSysfs(devicePath + "/comp_algorithm")
	if err != nil {
		return "", err
	}
	start := strings.IndexByte(raw, '[')
	end := strings.IndexByte(raw, ']')
	if start < 0 || end < 0 || end < start {
		return raw, nil
	}
	return raw[start+1 : end], nil
}
