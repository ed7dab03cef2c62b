package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/systemd-swap/swapd/daemon/lib"
)

// FragmentDirs returns the three drop-in directories in *ascending*
// precedence order (lib, run, etc) for use with Resolve — later directories
// override earlier ones, and cross-directory precedence is fixed at
// etc > run > lib regardless of file name.
func FragmentDirs(libDir string) []string {
	return []string{
		filepath.Join(libDir, "systemd/swap.conf.d"),
		"/run/systemd/swap.conf.d",
		"/etc/systemd/swap.conf.d",
	}
}

// BuildFilePaths assembles the full, precedence-ordered file list Resolve
// consumes: defaults, then the primary user overrides file, then every
// fragment directory's *.conf files, sorted lexicographically within each
// directory. Missing files and directories are simply omitted,
// not an error — drop-ins are optional by nature.
func BuildFilePaths(defaultsFile, userOverridesFile string, fragmentDirs []string) []string {
	paths := []string{defaultsFile, userOverridesFile}

	for _, dir := range fragmentDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".conf" {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}

// Resolve reads the given files in order, merging key=value pairs (a later
// file's key overrides an earlier one; within a file the last occurrence of
// a duplicate key wins, which is how gopkg.in/ini.v1's default section
// already behaves) and expanding ${VAR}/$VAR/$(( expr )) references against
// the accumulated mapping as each key is resolved. baseEnv seeds the
// expansion environment with NCPU and RAM_SIZE.
func Resolve(paths []string, baseEnv map[string]string) (*Config, error) {
	env := make(map[string]string, len(baseEnv))
	for k, v := range baseEnv {
		env[k] = v
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		raw, order, err := lib.ParseINIFileOrdered(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, NewConfigError("", fmt.Errorf("reading %s: %w", path, err))
		}

		for _, key := range order {
			expanded, err := expandValue(raw[key], env)
			if err != nil {
				var ce *ConfigError
				if as, ok := err.(*ConfigError); ok {
					ce = as
				} else {
					ce = NewConfigError(key, err)
				}
				if ce.Key == "" {
					ce.Key = key
				}
				return nil, fmt.Errorf("%s: %w", path, ce)
			}
			env[key] = expanded
		}
	}

	return &Config{values: env}, nil
}

// BaseEnv builds the expansion environment seed: NCPU (online CPU count)
// and RAM_SIZE (total RAM in kiB).
func BaseEnv(ncpu int, ramTotalKiB uint64) map[string]string {
	return map[string]string{
		"NCPU":     strconv.Itoa(ncpu),
		"RAM_SIZE": strconv.FormatUint(ramTotalKiB, 10),
	}
}
