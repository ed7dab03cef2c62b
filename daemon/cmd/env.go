// Package cmd provides the CLI command implementations for the
// systemd-swap daemon.
package cmd

import (
	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/services/meminfo"
)

// Configuration file locations. Defaults ship with the
// package; the user's primary overrides and the drop-in fragments layer on
// top in that order.
const (
	DefaultsFile   = "/usr/share/systemd-swap/swap-default.conf"
	UserConfigFile = "/etc/systemd/swap.conf"
	FragmentLibDir = "/usr/lib"
)

// Env carries the global CLI flags down to every command.
type Env struct {
	Version    string
	RuntimeDir string
}

// BuildContext assembles the application context every config-consuming
// command starts from: one meminfo sample for RAM_SIZE, the layered
// config resolution, the runtime directory, and the event bus.
func BuildContext(env *Env) (*domain.Context, error) {
	sample, err := meminfo.Read()
	if err != nil {
		return nil, domain.NewEnvironmentError("meminfo", err)
	}
	ncpu := meminfo.CPUCount()

	paths := domain.BuildFilePaths(DefaultsFile, UserConfigFile, domain.FragmentDirs(FragmentLibDir))
	cfg, err := domain.Resolve(paths, domain.BaseEnv(ncpu, sample.MemTotal/1024))
	if err != nil {
		return nil, err
	}

	rt, err := domain.NewRuntimeDir(env.RuntimeDir)
	if err != nil {
		return nil, domain.NewEnvironmentError("runtime directory", err)
	}

	return &domain.Context{
		Version:       env.Version,
		Config:        cfg,
		Hub:           domain.NewEventBus(1024),
		Runtime:       rt,
		NCPU:          ncpu,
		RAMTotalBytes: int64(sample.MemTotal),
	}, nil
}
