package swapfc

import (
	"context"
	"time"

	"github.com/systemd-swap/swapd/daemon/logger"
)

// MonitorConfig parameterizes the create/remove decisions of the swapfc
// monitoring loop.
type MonitorConfig struct {
	Interval            time.Duration
	CreateRAMThreshold  float64 // typical 20
	CreateSwapThreshold float64 // typical 40
	EmergencyThreshold  float64 // typical 5
	RemoveThreshold     float64 // typical 70
}

// Stats is the subset of a meminfo.Sample the monitor loop reacts to,
// expressed as percentages so this package doesn't need to import meminfo.
type Stats struct {
	FreeRAMPercent  float64
	FreeSwapPercent float64
}

// Monitor runs the create/remove decision loop until ctx is cancelled.
// getStats supplies the current free RAM/swap percentages on each tick.
func (c *Controller) Monitor(ctx context.Context, cfg MonitorConfig, getStats func() (Stats, error)) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	backoff := time.Duration(0)
	nextAttempt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gated := time.Now().Before(nextAttempt)
			failed := c.tick(cfg, getStats, gated)
			backoff = nextBackoff(backoff, failed)
			if failed {
				nextAttempt = time.Now().Add(backoff)
			} else if !gated {
				nextAttempt = time.Time{}
			}
		}
	}
}

func nextBackoff(current time.Duration, failed bool) time.Duration {
	if !failed {
		return 0
	}
	if current == 0 {
		return time.Second
	}
	next := current * 2
	if next > BackoffCeiling {
		next = BackoffCeiling
	}
	return next
}

// tick runs one monitoring decision and reports whether a creation attempt
// failed (driving the exponential backoff). gated suppresses ordinary
// creation while a backoff window is open; an emergency reading bypasses
// the gap and creates immediately.
func (c *Controller) tick(cfg MonitorConfig, getStats func() (Stats, error), gated bool) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("swapfc: monitor panic: %v", r)
		}
	}()

	if c.degraded {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, err := getStats()
	if err != nil {
		logger.Warning("swapfc: failed to sample memory stats: %v", err)
		return false
	}

	emergency := stats.FreeRAMPercent < cfg.EmergencyThreshold
	pressured := stats.FreeRAMPercent < cfg.CreateRAMThreshold || stats.FreeSwapPercent < cfg.CreateSwapThreshold
	if gated && !emergency {
		return false
	}

	if (emergency || pressured) && len(c.files) < c.cfg.MaxCount {
		index := c.nextIndex()
		if _, err := c.CreateFile(index); err != nil {
			logger.Warning("swapfc: creating file %d failed: %v", index, err)
			return true
		}
		return false
	}

	if stats.FreeSwapPercent > cfg.RemoveThreshold {
		if victim, ok := c.highestNumbered(); ok {
			if err := c.RemoveFile(victim); err != nil {
				logger.Debug("swapfc: removal of %d deferred: %v", victim, err)
			}
		}
	}
	return false
}

// nextIndex returns the lowest file index not already in use.
func (c *Controller) nextIndex() int {
	for i := 0; i < c.cfg.MaxCount; i++ {
		if _, ok := c.files[i]; !ok {
			return i
		}
	}
	return len(c.files)
}

// highestNumbered returns the largest file index currently held, if any.
func (c *Controller) highestNumbered() (int, bool) {
	found := false
	var max int
	for index := range c.files {
		if !found || index > max {
			max = index
			found = true
		}
	}
	return max, found
}
