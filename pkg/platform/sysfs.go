package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	sysNetDevices = "/sys/class/net"
	sysBusPci     = "/sys/bus/pci/devices"
	devDir        = "/dev"
)

// ───────────────────────────────────────────
//  sysfs helpers
// ───────────────────────────────────────────

// InterfacePCIAddress follows /sys/class/net/<ifName>/device to the PCI
// function behind a network interface. Virtual interfaces have no such link.
func InterfacePCIAddress(ifName string) (string, error) {
	link := filepath.Join(sysNetDevices, ifName, "device")
	fi, err := os.Lstat(link)
	if err != nil {
		return "", fmt.Errorf("interface %q has no device link: %w", ifName, err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return "", fmt.Errorf("interface %q is not backed by a PCI device", ifName)
	}
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("cannot resolve device link of %q: %w", ifName, err)
	}
	return filepath.Base(target), nil
}

// InterfaceDeviceID returns the PCI vendor and device IDs of the adapter
// behind ifName.
func InterfaceDeviceID(ifName string) (vendor, device uint16, err error) {
	pciAddr, err := InterfacePCIAddress(ifName)
	if err != nil {
		return 0, 0, err
	}
	v, err := strconv.ParseUint(GetPCIVendor(pciAddr), 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("PCI device %s: unreadable vendor ID", pciAddr)
	}
	d, err := strconv.ParseUint(GetPCIDeviceID(pciAddr), 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("PCI device %s: unreadable device ID", pciAddr)
	}
	return uint16(v), uint16(d), nil
}

// GetNetNames returns the network interface names associated with a PCI device
// by listing /sys/bus/pci/devices/<pciAddr>/net/.
func GetNetNames(pciAddr string) ([]string, error) {
	netDir := filepath.Join(sysBusPci, pciAddr, "net")
	entries, err := os.ReadDir(netDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read net directory %s: %w", netDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// GetPCIDevDriver returns the kernel driver currently bound to a PCI device.
func GetPCIDevDriver(pciAddr string) (string, error) {
	driverLink := filepath.Join(sysBusPci, pciAddr, "driver")
	driverInfo, err := os.Readlink(driverLink)
	if err != nil {
		return "", fmt.Errorf("cannot read driver symlink for PCI device %s: %w", pciAddr, err)
	}
	return filepath.Base(driverInfo), nil
}

// GetPCIVendor returns the PCI vendor ID for a device (e.g. "0x8086" → "8086").
func GetPCIVendor(pciAddr string) string {
	return readSysfsAttr(filepath.Join(sysBusPci, pciAddr, "vendor"))
}

// GetPCIDeviceID returns the PCI device/product ID for a device.
func GetPCIDeviceID(pciAddr string) string {
	return readSysfsAttr(filepath.Join(sysBusPci, pciAddr, "device"))
}

// FindPCIDevices lists the PCI addresses whose vendor and device IDs match,
// in address order.
func FindPCIDevices(vendor, device uint16) ([]string, error) {
	entries, err := os.ReadDir(sysBusPci)
	if err != nil {
		return nil, fmt.Errorf("cannot read PCI bus directory %s: %w", sysBusPci, err)
	}

	wantVendor := fmt.Sprintf("%04x", vendor)
	wantDevice := fmt.Sprintf("%04x", device)

	var matches []string
	for _, entry := range entries {
		pciAddr := entry.Name()
		if !strings.EqualFold(GetPCIVendor(pciAddr), wantVendor) {
			continue
		}
		if !strings.EqualFold(GetPCIDeviceID(pciAddr), wantDevice) {
			continue
		}
		matches = append(matches, pciAddr)
	}
	sort.Strings(matches)
	return matches, nil
}

// GetPHCIndex returns N for the /dev/ptpN clock exposed by a PCI device.
func GetPHCIndex(pciAddr string) (int, error) {
	ptpDir := filepath.Join(sysBusPci, pciAddr, "ptp")
	entries, err := os.ReadDir(ptpDir)
	if err != nil {
		return -1, fmt.Errorf("no ptp directory under PCI device %s: %w", pciAddr, err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "ptp") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(name, "ptp"))
		if err == nil {
			return idx, nil
		}
	}
	return -1, fmt.Errorf("PCI device %s exposes no PTP clock", pciAddr)
}

// GetLinkSpeed returns the negotiated speed of ifName in Mbps, or 0 when the
// link is down or the attribute is missing.
func GetLinkSpeed(ifName string) uint32 {
	if ifName == "" {
		return 0
	}
	val := readSysfsAttr(filepath.Join(sysNetDevices, ifName, "speed"))
	speed, err := strconv.Atoi(val)
	if err != nil || speed < 0 {
		return 0
	}
	return uint32(speed)
}

// readSysfsAttr reads a single sysfs attribute file, strips the "0x" prefix and whitespace.
func readSysfsAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	val := strings.TrimSpace(string(data))
	val = strings.TrimPrefix(val, "0x")
	return val
}
