package lib

import "testing"

func TestParseSize(t *testing.T) {
	const ram = int64(8) << 30

	cases := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"4K", 4096, false},
		{"4k", 4096, false},
		{"256M", 256 << 20, false},
		{"2G", 2 << 30, false},
		{"1T", 1 << 40, false},
		{"1.5G", 3 << 29, false},
		{"  512M  ", 512 << 20, false},
		{"50%", ram / 2, false},
		{"150%", ram + ram/2, false},
		{"", 0, true},
		{"G", 0, true},
		{"12X", 0, true},
		{"abc%", 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseSize(tc.input, ram)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseSizePercentNeedsRAM(t *testing.T) {
	if _, err := ParseSize("50%", 0); err == nil {
		t.Error("percentage without RAM size should fail")
	}
}

func TestFormatSizeRoundTrip(t *testing.T) {
	values := []int64{0, 1, 512, 1024, 4096, 1 << 20, 256 << 20, 3 << 29, 1 << 30, 1 << 40, 12345}
	for _, v := range values {
		formatted := FormatSize(v)
		parsed, err := ParseSize(formatted, 0)
		if err != nil {
			t.Errorf("ParseSize(FormatSize(%d) = %q) failed: %v", v, formatted, err)
			continue
		}
		if parsed != v {
			t.Errorf("round trip %d -> %q -> %d", v, formatted, parsed)
		}
	}
}
