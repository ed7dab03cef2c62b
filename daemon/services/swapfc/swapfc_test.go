package swapfc

import (
	"os"
	"testing"
	"time"

	"github.com/systemd-swap/swapd/daemon/domain"
)

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	runtime, err := domain.NewRuntimeDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewRuntimeDir: %v", err)
	}
	return New(cfg, runtime)
}

func TestFilenamePattern(t *testing.T) {
	cfg := Config{Directory: "/var/lib/swap"}
	got := cfg.filename(3)
	want := "/var/lib/swap/swap3"
	if got != want {
		t.Errorf("filename(3) = %q, want %q", got, want)
	}
}

func TestIndexFromPath(t *testing.T) {
	cfg := Config{Directory: "/var/lib/swap"}
	cases := []struct {
		path   string
		want   int
		wantOK bool
	}{
		{"/var/lib/swap/swap0", 0, true},
		{"/var/lib/swap/swap12", 12, true},
		{"/var/lib/swap/somethingelse", 0, false},
		{"/var/lib/swap/swap-abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := cfg.indexFromPath(tc.path)
		if ok != tc.wantOK || (ok && got != tc.want) {
			t.Errorf("indexFromPath(%q) = (%d, %v), want (%d, %v)", tc.path, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestNextIndexFillsGaps(t *testing.T) {
	c := newTestController(t, Config{Directory: t.TempDir(), MaxCount: 4})
	c.files[0] = &File{Index: 0}
	c.files[2] = &File{Index: 2}

	if got := c.nextIndex(); got != 1 {
		t.Errorf("nextIndex() = %d, want 1", got)
	}
}

func TestHighestNumbered(t *testing.T) {
	c := newTestController(t, Config{Directory: t.TempDir(), MaxCount: 4})
	if _, ok := c.highestNumbered(); ok {
		t.Error("highestNumbered() on empty controller should report false")
	}

	c.files[0] = &File{Index: 0}
	c.files[3] = &File{Index: 3}
	c.files[1] = &File{Index: 1}

	got, ok := c.highestNumbered()
	if !ok || got != 3 {
		t.Errorf("highestNumbered() = (%d, %v), want (3, true)", got, ok)
	}
}

func TestNextBackoffDoublesUntilCeiling(t *testing.T) {
	d := time.Duration(0)
	d = nextBackoff(d, true)
	if d != time.Second {
		t.Errorf("first backoff = %v, want 1s", d)
	}
	d = nextBackoff(d, true)
	if d != 2*time.Second {
		t.Errorf("second backoff = %v, want 2s", d)
	}
	for i := 0; i < 20; i++ {
		d = nextBackoff(d, true)
	}
	if d != BackoffCeiling {
		t.Errorf("backoff after many failures = %v, want ceiling %v", d, BackoffCeiling)
	}

	d = nextBackoff(d, false)
	if d != 0 {
		t.Errorf("backoff after success = %v, want 0", d)
	}
}

func TestAdoptKeepsExistingDropsMissing(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Config{Directory: dir, MaxCount: 4, ChunkSize: 1 << 20, BasePriority: -2})

	existing := dir + "/swap0"
	if err := os.WriteFile(existing, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	c.files[0] = &File{Index: 0, Path: existing, Size: 1 << 20, Priority: -2, State: StateActive}
	c.files[1] = &File{Index: 1, Path: dir + "/swap1", Size: 1 << 20, Priority: -3, State: StateActive}
	c.persist()
	c.files = make(map[int]*File)

	c.Adopt()

	if len(c.files) != 1 {
		t.Fatalf("Adopt kept %d files, want 1", len(c.files))
	}
	f, ok := c.files[0]
	if !ok || f.Path != existing || f.Priority != -2 {
		t.Errorf("adopted file = %+v", f)
	}

	// The dropped entry must be gone from the persisted state too.
	if got := LoadState(c.runtime); len(got) != 1 {
		t.Errorf("persisted state after Adopt has %d entries, want 1", len(got))
	}
}

func TestMonitorGateBlocksOrdinaryButNotEmergency(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Config{Directory: dir, MaxCount: 0}) // MaxCount 0: creation branch unreachable

	cfg := MonitorConfig{
		CreateRAMThreshold:  20,
		CreateSwapThreshold: 40,
		EmergencyThreshold:  5,
		RemoveThreshold:     70,
	}

	calls := 0
	stats := func() (Stats, error) {
		calls++
		return Stats{FreeRAMPercent: 3, FreeSwapPercent: 50}, nil
	}

	// Gated non-emergency tick returns before acting.
	if failed := c.tick(cfg, func() (Stats, error) { return Stats{FreeRAMPercent: 30, FreeSwapPercent: 50}, nil }, true); failed {
		t.Error("gated tick should not report a failure")
	}

	// An emergency reading is still evaluated under the gate.
	c.tick(cfg, stats, true)
	if calls != 1 {
		t.Errorf("emergency stats sampled %d times, want 1", calls)
	}
}
