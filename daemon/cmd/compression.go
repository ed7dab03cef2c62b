package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/systemd-swap/swapd/daemon/lib"
)

// Compression lists the compression algorithms the running kernel supports
// for swap duty.
type Compression struct{}

// Run prefers an existing zram device's comp_algorithm attribute, which
// lists exactly the choices zram accepts. Without one it falls back to
// scanning /proc/crypto for registered compressors, which is a superset
// (some entries may not be wired up as zram/zswap backends).
func (c *Compression) Run(env *Env) error {
	if algos := zramAlgorithms(); len(algos) > 0 {
		for _, a := range algos {
			fmt.Println(a)
		}
		return nil
	}

	algos, err := cryptoCompressors("/proc/crypto")
	if err != nil {
		return err
	}
	for _, a := range algos {
		fmt.Println(a)
	}
	return nil
}

// zramAlgorithms reads the first present zram device's comp_algorithm
// list, stripping the brackets marking the active choice.
func zramAlgorithms() []string {
	for i := 0; i < 8; i++ {
		raw, err := lib.ReadSysfs(fmt.Sprintf("/sys/block/zram%d/comp_algorithm", i))
		if err != nil {
			continue
		}
		fields := strings.Fields(raw)
		algos := make([]string, 0, len(fields))
		for _, f := range fields {
			algos = append(algos, strings.Trim(f, "[]"))
		}
		return algos
	}
	return nil
}

// cryptoCompressors parses /proc/crypto's stanza format (blank-line
// separated key : value blocks) and returns the names of every registered
// compression algorithm.
func cryptoCompressors(path string) ([]string, error) {
	lines, err := lib.ReadLines(path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var name string
	for _, line := range lines {
		key, value := lib.ParseKeyValue(strings.Replace(line, ":", "=", 1))
		switch key {
		case "name":
			name = value
		case "type":
			if (value == "compression" || value == "scomp" || value == "acomp") && name != "" {
				seen[name] = true
			}
		}
	}

	algos := make([]string, 0, len(seen))
	for a := range seen {
		algos = append(algos, a)
	}
	sort.Strings(algos)
	return algos, nil
}
