package platform

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeSysfs redirects the sysfs roots into a temp dir for the test's lifetime.
func fakeSysfs(t *testing.T) (pciRoot, netRoot string) {
	t.Helper()
	origPci, origNet, origDev := sysBusPci, sysNetDevices, devDir
	t.Cleanup(func() {
		sysBusPci, sysNetDevices, devDir = origPci, origNet, origDev
	})

	dir := t.TempDir()
	sysBusPci = filepath.Join(dir, "bus")
	sysNetDevices = filepath.Join(dir, "net")
	devDir = filepath.Join(dir, "dev")
	for _, d := range []string{sysBusPci, sysNetDevices, devDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return sysBusPci, sysNetDevices
}

func addPCIDevice(t *testing.T, pciRoot, addr, vendor, device string) string {
	t.Helper()
	pciDir := filepath.Join(pciRoot, addr)
	os.MkdirAll(pciDir, 0755)
	os.WriteFile(filepath.Join(pciDir, "vendor"), []byte(vendor+"\n"), 0644)
	os.WriteFile(filepath.Join(pciDir, "device"), []byte(device+"\n"), 0644)
	return pciDir
}

// ──────────────────────────────────────────────
//  readSysfsAttr
// ──────────────────────────────────────────────

func TestReadSysfsAttr(t *testing.T) {
	dir := t.TempDir()
	attrFile := filepath.Join(dir, "vendor")

	os.WriteFile(attrFile, []byte("0x8086\n"), 0644)
	if got := readSysfsAttr(attrFile); got != "8086" {
		t.Errorf("expected '8086', got %q", got)
	}
}

func TestReadSysfsAttr_NotExist(t *testing.T) {
	if got := readSysfsAttr("/nonexistent/path/vendor"); got != "" {
		t.Errorf("expected empty string for missing file, got %q", got)
	}
}

// ──────────────────────────────────────────────
//  FindPCIDevices
// ──────────────────────────────────────────────

func TestFindPCIDevices(t *testing.T) {
	pciRoot, _ := fakeSysfs(t)
	addPCIDevice(t, pciRoot, "0000:05:00.0", "0x8086", "0x125b")
	addPCIDevice(t, pciRoot, "0000:03:00.0", "0x8086", "0x125B")
	addPCIDevice(t, pciRoot, "0000:04:00.0", "0x8086", "0x1533")
	addPCIDevice(t, pciRoot, "0000:06:00.0", "0x15b3", "0x125b")

	got, err := FindPCIDevices(0x8086, 0x125B)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"0000:03:00.0", "0000:05:00.0"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFindPCIDevices_NoBus(t *testing.T) {
	fakeSysfs(t)
	sysBusPci = "/nonexistent/bus"
	if _, err := FindPCIDevices(0x8086, 0x125B); err == nil {
		t.Error("expected error for missing PCI bus directory")
	}
}

// ──────────────────────────────────────────────
//  GetNetNames / GetPCIDevDriver / GetPHCIndex
// ──────────────────────────────────────────────

func TestGetNetNames(t *testing.T) {
	pciRoot, _ := fakeSysfs(t)
	pciDir := addPCIDevice(t, pciRoot, "0000:03:00.0", "0x8086", "0x125b")
	os.MkdirAll(filepath.Join(pciDir, "net", "enp3s0"), 0755)

	names, err := GetNetNames("0000:03:00.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 1 || names[0] != "enp3s0" {
		t.Errorf("expected [enp3s0], got %v", names)
	}
}

func TestGetPCIDevDriver(t *testing.T) {
	pciRoot, _ := fakeSysfs(t)
	pciDir := addPCIDevice(t, pciRoot, "0000:03:00.0", "0x8086", "0x125b")
	os.Symlink("../../../bus/pci/drivers/igc", filepath.Join(pciDir, "driver"))

	driver, err := GetPCIDevDriver("0000:03:00.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver != "igc" {
		t.Errorf("expected 'igc', got %q", driver)
	}
}

func TestGetPHCIndex(t *testing.T) {
	pciRoot, _ := fakeSysfs(t)
	pciDir := addPCIDevice(t, pciRoot, "0000:03:00.0", "0x8086", "0x125b")
	os.MkdirAll(filepath.Join(pciDir, "ptp", "ptp2"), 0755)

	idx, err := GetPHCIndex("0000:03:00.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 2 {
		t.Errorf("expected 2, got %d", idx)
	}
}

func TestGetPHCIndex_Missing(t *testing.T) {
	pciRoot, _ := fakeSysfs(t)
	addPCIDevice(t, pciRoot, "0000:03:00.0", "0x8086", "0x15bc")

	idx, err := GetPHCIndex("0000:03:00.0")
	if err == nil {
		t.Error("expected error for device without ptp directory")
	}
	if idx != -1 {
		t.Errorf("expected -1, got %d", idx)
	}
}

// ──────────────────────────────────────────────
//  InterfacePCIAddress / InterfaceDeviceID / GetLinkSpeed
// ──────────────────────────────────────────────

func TestInterfacePCIAddress(t *testing.T) {
	_, netRoot := fakeSysfs(t)
	ifDir := filepath.Join(netRoot, "enp3s0")
	os.MkdirAll(ifDir, 0755)
	os.Symlink("../../../0000:03:00.0", filepath.Join(ifDir, "device"))

	addr, err := InterfacePCIAddress("enp3s0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "0000:03:00.0" {
		t.Errorf("expected '0000:03:00.0', got %q", addr)
	}
}

func TestInterfacePCIAddress_NotSymlink(t *testing.T) {
	_, netRoot := fakeSysfs(t)
	os.MkdirAll(filepath.Join(netRoot, "lo", "device"), 0755)

	if _, err := InterfacePCIAddress("lo"); err == nil {
		t.Error("expected error when device is not a symlink")
	}
	if _, err := InterfacePCIAddress("missing0"); err == nil {
		t.Error("expected error for a missing interface")
	}
}

func TestInterfaceDeviceID(t *testing.T) {
	pciRoot, netRoot := fakeSysfs(t)
	pciDir := addPCIDevice(t, pciRoot, "0000:03:00.0", "0x8086", "0x125b")
	ifDir := filepath.Join(netRoot, "enp3s0")
	os.MkdirAll(ifDir, 0755)
	os.Symlink(pciDir, filepath.Join(ifDir, "device"))

	vendor, device, err := InterfaceDeviceID("enp3s0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vendor != 0x8086 || device != 0x125B {
		t.Errorf("got %04x:%04x, want 8086:125b", vendor, device)
	}

	// link to a PCI function with no readable IDs
	badDir := filepath.Join(netRoot, "enp9s0")
	os.MkdirAll(badDir, 0755)
	os.Symlink("../../../0000:09:00.0", filepath.Join(badDir, "device"))
	if _, _, err := InterfaceDeviceID("enp9s0"); err == nil {
		t.Error("expected error for unreadable IDs")
	}
}

func TestGetLinkSpeed(t *testing.T) {
	_, netRoot := fakeSysfs(t)
	up := filepath.Join(netRoot, "enp3s0")
	down := filepath.Join(netRoot, "enp4s0")
	os.MkdirAll(up, 0755)
	os.MkdirAll(down, 0755)
	os.WriteFile(filepath.Join(up, "speed"), []byte("2500\n"), 0644)
	os.WriteFile(filepath.Join(down, "speed"), []byte("-1\n"), 0644)

	tests := []struct {
		ifName string
		want   uint32
	}{
		{"enp3s0", 2500},
		{"enp4s0", 0},
		{"missing0", 0},
		{"", 0},
	}
	for _, tc := range tests {
		if got := GetLinkSpeed(tc.ifName); got != tc.want {
			t.Errorf("GetLinkSpeed(%q) = %d, want %d", tc.ifName, got, tc.want)
		}
	}
}
