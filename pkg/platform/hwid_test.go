package platform

import "testing"

func TestParseHardwareID(t *testing.T) {
	tests := []struct {
		hwid       string
		wantVendor uint16
		wantDevice uint16
		wantOK     bool
	}{
		{`PCI\VEN_8086&DEV_125B&SUBSYS_00008086&REV_04`, 0x8086, 0x125B, true},
		{`pci\ven_8086&dev_15f3`, 0x8086, 0x15F3, true},
		{`PCI\VEN_8086&DEV_1533`, 0x8086, 0x1533, true},
		{`PCI\VEN_8086`, 0, 0, false},
		{`PCI\VEN_80&DEV_1533`, 0, 0, false},
		{`ROOT\NET\0000`, 0, 0, false},
		{``, 0, 0, false},
	}
	for _, tc := range tests {
		v, d, ok := ParseHardwareID(tc.hwid)
		if ok != tc.wantOK || v != tc.wantVendor || d != tc.wantDevice {
			t.Errorf("ParseHardwareID(%q) = (%#04x, %#04x, %v), want (%#04x, %#04x, %v)",
				tc.hwid, v, d, ok, tc.wantVendor, tc.wantDevice, tc.wantOK)
		}
	}
}

func TestCounterToNanos(t *testing.T) {
	tests := []struct {
		counter, freq int64
		want          uint64
	}{
		{10_000_000, 10_000_000, 1_000_000_000},
		{15_000_000, 10_000_000, 1_500_000_000},
		{1, 3, 333},
		// large enough that counter*1e9 would overflow int64
		{1 << 40, 10_000_000, 109_951_162_777_600},
		{0, 10_000_000, 0},
		{100, 0, 0},
	}
	for _, tc := range tests {
		if got := counterToNanos(tc.counter, tc.freq); got != tc.want {
			t.Errorf("counterToNanos(%d, %d) = %d, want %d", tc.counter, tc.freq, got, tc.want)
		}
	}
}
