package zram

import (
	"context"
	"time"

	"github.com/systemd-swap/swapd/daemon/logger"
)

// MonitorConfig parameterizes the monitoring loop's expand/contract
// decisions.
type MonitorConfig struct {
	Interval                time.Duration
	ExpandThreshold         float64       // typical 85
	ContractThreshold       float64       // typical 20
	ContractStabilityWindow time.Duration // typical 120s
	DrainDeadline           time.Duration
	SafetyFactor            float64 // adaptive guard multiplier, typical 1.5
}

// FreeRAMFunc returns the current free RAM in bytes, used by the adaptive
// guard; supplied by the caller so this package doesn't import the meminfo
// sampler directly.
type FreeRAMFunc func() (int64, error)

// Monitor runs the pool's expand/contract loop until ctx is cancelled.
// getFreeRAM feeds the adaptive expansion guard.
func (p *Pool) Monitor(ctx context.Context, cfg MonitorConfig, getFreeRAM FreeRAMFunc) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(cfg, getFreeRAM)
		}
	}
}

func (p *Pool) tick(cfg MonitorConfig, getFreeRAM FreeRAMFunc) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("zram: monitor panic: %v", r)
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	utilization, err := p.utilization()
	if err != nil {
		logger.Warning("zram: failed to sample pool utilization: %v", err)
		return
	}

	switch {
	case utilization > cfg.ExpandThreshold && len(p.devices) < p.cfg.MaxCount:
		p.tryExpand(cfg, getFreeRAM)
	case utilization < cfg.ContractThreshold && len(p.devices) > p.cfg.MinCount:
		p.tryContract(cfg)
	default:
		p.resetIdleTimers()
	}
}

// utilization computes sum(mem_used_total) / sum(disksize) as a percentage
// across every device in the pool.
func (p *Pool) utilization() (float64, error) {
	var usedTotal, sizeTotal int64
	for _, d := range p.devices {
		used, err := memUsedTotal(blockPath(d.Index))
		if err != nil {
			return 0, err
		}
		usedTotal += used
		sizeTotal += d.Disksize
	}
	if sizeTotal == 0 {
		return 0, nil
	}
	return float64(usedTotal) / float64(sizeTotal) * 100, nil
}

// tryExpand adds one device if the adaptive free-RAM guard permits it.
// It fails silently (no expansion, no error surfaced) when the guard is
// not satisfied; the kernel's own watermarks and OOM killer remain the
// backstop.
func (p *Pool) tryExpand(cfg MonitorConfig, getFreeRAM FreeRAMFunc) {
	disksize := p.cfg.PerDeviceDisksize(len(p.devices) + 1)
	expectedFootprint := disksize // worst case: no compression gain

	if getFreeRAM != nil {
		free, err := getFreeRAM()
		if err != nil {
			logger.Warning("zram: failed to sample free RAM for expansion guard: %v", err)
			return
		}
		required := int64(float64(expectedFootprint) * cfg.SafetyFactor)
		if free < required {
			logger.Debug("zram: expansion guard declined (free=%d required=%d)", free, required)
			return
		}
	}

	if _, err := p.CreateDevice(disksize); err != nil {
		logger.Warning("zram: expansion failed: %v", err)
	}
}

// tryContract marks the least-loaded device idle, or removes it if it has
// been idle past the stability window.
func (p *Pool) tryContract(cfg MonitorConfig) {
	victim := p.leastLoaded()
	if victim == nil {
		return
	}

	if victim.State != StateIdle {
		victim.State = StateIdle
		victim.IdleSince = time.Now()
		logger.Debug("zram: device %d marked idle", victim.Index)
		return
	}

	if time.Since(victim.IdleSince) >= cfg.ContractStabilityWindow {
		if err := p.RemoveDevice(victim.Index, cfg.DrainDeadline); err != nil {
			logger.Warning("zram: contraction failed: %v", err)
		}
	}
}

// leastLoaded returns the pool's lowest mem_used_total device, or nil for
// an empty pool.
func (p *Pool) leastLoaded() *Device {
	var victim *Device
	var victimUsed int64 = -1
	for _, d := range p.devices {
		used, err := memUsedTotal(blockPath(d.Index))
		if err != nil {
			continue
		}
		if victim == nil || used < victimUsed {
			victim = d
			victimUsed = used
		}
	}
	return victim
}

// resetIdleTimers clears idle state on every device not currently mid-
// removal, i.e. utilization recovery.
func (p *Pool) resetIdleTimers() {
	for _, d := range p.devices {
		if d.State == StateIdle {
			d.State = StateActive
			d.IdleSince = time.Time{}
		}
	}
}
