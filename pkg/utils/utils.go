// Package utils provides shared helpers for ethhal's reporting and CDI code.
package utils

import (
	"strings"

	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// SanitizeName lowercases s and replaces characters that are unsafe for CDI
// names and file names (colons, slashes, dots, braces) with hyphens. Braces
// come from Windows adapter GUIDs and are dropped.
func SanitizeName(s string) string {
	r := strings.NewReplacer(
		":", "-",
		"/", "-",
		`\`, "-",
		".", "-",
		"{", "",
		"}", "",
	)
	return strings.ToLower(r.Replace(s))
}

// OrPlaceholder returns s, or placeholder when s is empty.
func OrPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

// Location returns where the platform found the adapter: the PCI address on
// Linux, the adapter GUID on Windows, "" when it has not been located.
func Location(ctx types.PlatformContext) string {
	switch c := ctx.(type) {
	case *types.LinuxContext:
		return c.PCIAddress
	case *types.WindowsContext:
		return c.AdapterName
	}
	return ""
}

// ClockDevice returns the PTP clock node of an adapter (e.g. "/dev/ptp0"),
// or "" when it has none.
func ClockDevice(ctx types.PlatformContext) string {
	if c, ok := ctx.(*types.LinuxContext); ok && c.PHCIndex >= 0 {
		return c.PHCPath
	}
	return ""
}
