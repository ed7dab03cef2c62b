package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCryptoCompressors(t *testing.T) {
	content := `name         : lzo
driver       : lzo-generic
type         : compression

name         : zstd
driver       : zstd-scomp
type         : scomp

name         : sha256
driver       : sha256-generic
type         : shash

name         : lz4
driver       : lz4-scomp
type         : scomp
`
	path := filepath.Join(t.TempDir(), "crypto")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	algos, err := cryptoCompressors(path)
	if err != nil {
		t.Fatalf("cryptoCompressors: %v", err)
	}

	want := []string{"lz4", "lzo", "zstd"}
	if len(algos) != len(want) {
		t.Fatalf("cryptoCompressors = %v, want %v", algos, want)
	}
	for i := range want {
		if algos[i] != want[i] {
			t.Errorf("algos[%d] = %q, want %q", i, algos[i], want[i])
		}
	}
}
