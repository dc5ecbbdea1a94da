package platform

import (
	"strconv"
	"strings"
)

// ParseHardwareID extracts the vendor and device IDs from a Windows PnP
// hardware ID such as `PCI\VEN_8086&DEV_125B&SUBSYS_00008086&REV_04`.
// Matching is case-insensitive.
func ParseHardwareID(hwid string) (vendor, device uint16, ok bool) {
	upper := strings.ToUpper(hwid)
	v, okV := hexField(upper, "VEN_")
	d, okD := hexField(upper, "DEV_")
	if !okV || !okD {
		return 0, 0, false
	}
	return v, d, true
}

func hexField(s, key string) (uint16, bool) {
	i := strings.Index(s, key)
	if i < 0 || len(s) < i+len(key)+4 {
		return 0, false
	}
	v, err := strconv.ParseUint(s[i+len(key):i+len(key)+4], 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
