// Package swapfc manages a pool of on-disk swap files: directory/subvolume
// preconditions, creation in response to memory pressure, removal as
// pressure relaxes, and btrfs-specific handling.
package swapfc

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

// State mirrors the swap file's lifecycle.
type State string

const (
	StateCreating State = "creating"
	StateActive   State = "active"
	StateRemoving State = "removing"
)

// File is one daemon-managed swap file.
type File struct {
	Index    int
	Path     string
	Size     int64
	Priority int
	State    State
	LoopDev  string // set when attached via a loop device (btrfs compression)
}

// Config parameterizes the controller's file layout and thresholds.
type Config struct {
	Directory           string
	ChunkSize           int64
	MaxCount            int
	Sparse              bool // truncate instead of fallocate
	UseBtrfsCompression bool
	BasePriority        int // first file's priority; later files strictly lower
}

// filename returns the predictable numeric-suffixed name the daemon owns
// exclusively — files not matching this pattern are never touched.
func (c Config) filename(index int) string {
	return filepath.Join(c.Directory, fmt.Sprintf("swap%d", index))
}

const snapshotFile = "swapfc.files"

// Controller owns a set of swap files under Config.Directory. mu serializes
// the monitor tick, the directory watcher's reconciliation, and status
// snapshots; the mutating CreateFile/RemoveFile paths run either under the
// tick or after every loop has drained, so they stay lock-free themselves.
type Controller struct {
	cfg      Config
	runtime  domain.RuntimeDir
	degraded bool

	mu    sync.Mutex
	files map[int]*File
}

// New creates a Controller with no files yet.
func New(cfg Config, runtime domain.RuntimeDir) *Controller {
	return &Controller{cfg: cfg, runtime: runtime, files: make(map[int]*File)}
}

// Degraded reports whether the precondition check failed and this
// controller is running in degraded (no-op) mode.
func (c *Controller) Degraded() bool { return c.degraded }

// Files returns a snapshot of the controller's current members.
func (c *Controller) Files() []File {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]File, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, *f)
	}
	return out
}

// CheckPrecondition verifies the target filesystem is supported and, for
// btrfs, that the directory has copy-on-write disabled for the files it
// will hold. On failure it marks the controller degraded — the daemon falls
// back to zram-only mode; only a failed filesystem-type probe also returns
// an EnvironmentError.
func (c *Controller) CheckPrecondition() error {
	fsType, err := lib.FilesystemType(c.cfg.Directory)
	if err != nil {
		c.degraded = true
		return domain.NewEnvironmentError("swapfc", fmt.Errorf("detecting filesystem type: %w", err))
	}

	switch fsType {
	case "btrfs":
		if out, err := lib.ExecCommandOutput("chattr", "+C", c.cfg.Directory); err != nil {
			logger.Warning("swapfc: chattr +C on %s failed, degrading to zram-only: %v (%s)", c.cfg.Directory, err, strings.TrimSpace(out))
			c.degraded = true
			return nil
		}
	case "ext4", "xfs":
		// no special handling required
	default:
		logger.Warning("swapfc: unsupported filesystem %s under %s, degrading to zram-only", fsType, c.cfg.Directory)
		c.degraded = true
		return nil
	}
	return nil
}

// CreateFile provisions swap file index end to end: allocate, optionally
// attach a loop device and mkswap the loop (btrfs + compression) or mkswap
// the file directly, then swapon.
func (c *Controller) CreateFile(index int) (*File, error) {
	path := c.cfg.filename(index)
	f := &File{
		Index:    index,
		Path:     path,
		Size:     c.cfg.ChunkSize,
		Priority: c.cfg.BasePriority - index,
		State:    StateCreating,
	}

	if err := c.allocate(path, c.cfg.ChunkSize); err != nil {
		return nil, domain.NewResourceError("swapfc allocate", err)
	}

	swapTarget := path
	if c.cfg.UseBtrfsCompression {
		loopDev, err := c.attachLoop(path)
		if err != nil {
			_ = os.Remove(path)
			return nil, domain.NewResourceError("swapfc losetup", err)
		}
		f.LoopDev = loopDev
		swapTarget = loopDev
	}

	if _, err := lib.ExecCommand("mkswap", swapTarget); err != nil {
		c.cleanupFailed(f)
		return nil, domain.NewResourceError("swapfc mkswap", err)
	}

	args := []string{"-p", strconv.Itoa(f.Priority)}
	if supportsDiscard(path) {
		args = append(args, "--discard")
	}
	args = append(args, swapTarget)
	if _, err := lib.ExecCommand("swapon", args...); err != nil {
		c.cleanupFailed(f)
		return nil, domain.NewResourceError("swapfc swapon", err)
	}

	f.State = StateActive
	c.files[index] = f
	c.persist()
	logger.Info("swapfc: created %s (%d bytes, priority %d)", path, f.Size, f.Priority)
	return f, nil
}

func (c *Controller) allocate(path string, size int64) error {
	if c.cfg.Sparse {
		file, err := os.Create(path) //nolint:gosec // path is built from the configured swap directory, not user input
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := file.Truncate(size); err != nil {
			file.Close()
			return fmt.Errorf("truncating %s to %d: %w", path, size, err)
		}
		return file.Close()
	}
	_, err := lib.ExecCommand("fallocate", "-l", strconv.FormatInt(size, 10), path)
	if err != nil {
		return fmt.Errorf("fallocate %s: %w", path, err)
	}
	return nil
}

func (c *Controller) attachLoop(path string) (string, error) {
	lines, err := lib.ExecCommand("losetup", "--find", "--show", path)
	if err != nil {
		return "", fmt.Errorf("losetup %s: %w", path, err)
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("losetup %s returned no device", path)
	}
	return lines[0], nil
}

// dropExternallyRemoved forgets a file whose backing path disappeared
// outside the daemon's control, without attempting any teardown of its own.
func (c *Controller) dropExternallyRemoved(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, owned := c.files[index]
	if !owned {
		return
	}
	logger.Warning("swapfc: %s disappeared outside daemon control, dropping from runtime state", f.Path)
	delete(c.files, index)
	c.persist()
}

// cleanupFailed tears a partially-created file back down, best-effort.
func (c *Controller) cleanupFailed(f *File) {
	if f.LoopDev != "" {
		_, _ = lib.ExecCommand("losetup", "-d", f.LoopDev)
	}
	_ = os.Remove(f.Path)
}

// RemoveFile tears a file down: swapoff, detach its loop device if any,
// unlink, update runtime state. If swapoff
// fails with the device busy, removal aborts so the caller can retry on the
// next tick.
func (c *Controller) RemoveFile(index int) error {
	f, ok := c.files[index]
	if !ok {
		return domain.NewInvariantError("swapfc", fmt.Errorf("file %d not owned by this controller", index))
	}
	f.State = StateRemoving

	swapTarget := f.Path
	if f.LoopDev != "" {
		swapTarget = f.LoopDev
	}
	if _, err := lib.ExecCommand("swapoff", swapTarget); err != nil {
		return domain.NewResourceError("swapfc swapoff", fmt.Errorf("device busy, deferring removal: %w", err))
	}

	if f.LoopDev != "" {
		if _, err := lib.ExecCommand("losetup", "-d", f.LoopDev); err != nil {
			logger.Warning("swapfc: detaching loop device %s failed: %v", f.LoopDev, err)
		}
	}
	if err := os.Remove(f.Path); err != nil {
		logger.Warning("swapfc: removing %s failed: %v", f.Path, err)
	}

	delete(c.files, index)
	c.persist()
	logger.Info("swapfc: removed %s", f.Path)
	return nil
}

// parseRecord decodes one persisted file entry ("path size priority").
func parseRecord(index int, record string) (File, bool) {
	parts := strings.Fields(record)
	if len(parts) != 3 {
		return File{}, false
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return File{}, false
	}
	priority, err := strconv.Atoi(parts[2])
	if err != nil {
		return File{}, false
	}
	return File{
		Index:    index,
		Path:     parts[0],
		Size:     size,
		Priority: priority,
		State:    StateActive,
	}, true
}

// LoadState reads the file set a running (or crashed) instance persisted,
// for the read-only status report.
func LoadState(runtime domain.RuntimeDir) []File {
	persisted, err := domain.ReadKeyValueFile(runtime.StateFile(snapshotFile))
	if err != nil {
		return nil
	}
	var files []File
	for key, record := range persisted {
		index, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if f, ok := parseRecord(index, record); ok {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })
	return files
}

// Adopt re-takes ownership of swap files a previous instance persisted and
// that still exist on disk. Entries whose file has disappeared are dropped
// from runtime state rather than recreated.
func (c *Controller) Adopt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range LoadState(c.runtime) {
		if !lib.FileExists(f.Path) {
			logger.Warning("swapfc: persisted file %s no longer exists, dropping from state", f.Path)
			continue
		}
		adopted := f
		c.files[f.Index] = &adopted
		logger.Info("swapfc: adopted existing file %s", f.Path)
	}
	c.persist()
}

func (c *Controller) persist() {
	keys := make([]string, 0, len(c.files))
	values := make(map[string]string, len(c.files))
	for index, f := range c.files {
		key := strconv.Itoa(index)
		keys = append(keys, key)
		values[key] = fmt.Sprintf("%s %d %d", f.Path, f.Size, f.Priority)
	}
	sort.Strings(keys)
	path := c.runtime.StateFile(snapshotFile)
	if err := domain.WriteKeyValueFile(path, keys, values); err != nil {
		logger.Warning("swapfc: failed to persist file state: %v", err)
	}
}

// supportsDiscard reports whether the filesystem under path supports the
// discard mount option, used to decide whether swapon gets --discard.
func supportsDiscard(path string) bool {
	fsType, err := lib.FilesystemType(filepath.Dir(path))
	if err != nil {
		return false
	}
	switch fsType {
	case "ext4", "xfs", "btrfs":
		return true
	default:
		return false
	}
}

// BackoffCeiling is the maximum exponential backoff a creation-failure
// sequence is allowed to reach; once there, the controller keeps retrying at
// this interval until a creation succeeds and resets it.
const BackoffCeiling = 5 * time.Minute
