package swapfc

import (
	"context"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/logger"
)

// Watcher observes the swap-file directory for files removed or renamed
// outside the daemon's control (files created there are not tracked) (e.g. an administrator manually cleaning up
// after a crash) and reconciles the controller's runtime state accordingly,
// instead of polling stat() on every monitor tick.
type Watcher struct {
	watcher *fsnotify.Watcher
	ctrl    *Controller
}

// NewWatcher opens an fsnotify watch on ctrl's configured directory.
func NewWatcher(ctrl *Controller) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, domain.NewEnvironmentError("swapfc watcher", err)
	}
	if err := w.Add(ctrl.cfg.Directory); err != nil {
		w.Close()
		return nil, domain.NewEnvironmentError("swapfc watcher", err)
	}
	return &Watcher{watcher: w, ctrl: ctrl}, nil
}

// Run consumes fsnotify events until ctx is cancelled, reconciling the
// controller's in-memory file map whenever a daemon-owned file disappears
// unexpectedly.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.reconcileRemoval(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("swapfc: watcher error: %v", err)
		}
	}
}

// reconcileRemoval drops a file from the controller's runtime state if its
// path disappeared and it matches the daemon's own naming pattern
// ("swap<N>"); files not matching that pattern are never touched.
func (w *Watcher) reconcileRemoval(path string) {
	index, ok := w.ctrl.cfg.indexFromPath(path)
	if !ok {
		return
	}
	w.ctrl.dropExternallyRemoved(index)
}

// indexFromPath extracts the numeric suffix from a daemon-owned swap file
// name, or reports false if path doesn't match the pattern this directory's
// files are created under.
func (c Config) indexFromPath(path string) (int, bool) {
	base := path[strings.LastIndexByte(path, '/')+1:]
	if !strings.HasPrefix(base, "swap") {
		return 0, false
	}
	n, err := strconv.Atoi(base[len("swap"):])
	if err != nil {
		return 0, false
	}
	return n, true
}
