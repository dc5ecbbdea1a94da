//go:build windows

package platform

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// netClassKey is the device setup class of network adapters.
const netClassKey = `SYSTEM\CurrentControlSet\Control\Class\{4d36e972-e325-11ce-bfc1-08002be10318}`

type windowsBackend struct{}

func newBackend() Backend {
	return &windowsBackend{}
}

func (*windowsBackend) Kind() types.BackendKind { return types.BackendWindows }

type classEntry struct {
	hardwareID  string
	description string
	instanceID  string
}

// LocateAdapter walks the network adapter class key for an entry whose
// hardware ID matches desc.
func (b *windowsBackend) LocateAdapter(desc types.DeviceDescriptor) (*Adapter, error) {
	const op = "locate_adapter"

	entries, err := readNetClass()
	if err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return nil, result.Wrap(result.AccessDenied, op, err, "cannot open network class key")
		}
		return nil, result.Wrap(result.OsSpecific, op, err, "cannot open network class key")
	}

	var found *classEntry
	for i := range entries {
		v, d, ok := ParseHardwareID(entries[i].hardwareID)
		if ok && v == desc.VendorID && d == desc.DeviceID {
			found = &entries[i]
			break
		}
	}
	if found == nil {
		return nil, result.New(result.NoDevice, op, "adapter %s not present", desc.PCIID())
	}

	var freq int64
	if err := windows.QueryPerformanceFrequency(&freq); err != nil || freq <= 0 {
		return nil, result.Wrap(result.OsSpecific, op, err, "QueryPerformanceFrequency")
	}

	ctx := &types.WindowsContext{
		AdapterName:      found.instanceID,
		Description:      found.description,
		CounterFrequency: freq,
	}
	info := types.InterfaceInfo{Name: found.instanceID}
	if err := fillAdapterAddresses(ctx, &info); err != nil {
		log.Debugf("windows: GetAdaptersAddresses: %v", err)
	}
	if err := queryNDISClock(ctx); err != nil {
		log.Debugf("windows: %s: no native timestamping: %v", found.instanceID, err)
	}

	log.Infof("windows: found %s as %q (%s)", desc.Name, found.description, found.instanceID)
	return &Adapter{Description: found.description, Interface: info, Context: ctx}, nil
}

func readNetClass() ([]classEntry, error) {
	class, err := registry.OpenKey(registry.LOCAL_MACHINE, netClassKey, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer class.Close()

	names, err := class.ReadSubKeyNames(-1)
	if err != nil {
		return nil, err
	}

	var out []classEntry
	for _, name := range names {
		k, err := registry.OpenKey(class, name, registry.QUERY_VALUE)
		if err != nil {
			// "Properties" and friends are not adapter entries
			continue
		}
		e := classEntry{}
		e.hardwareID, _, _ = k.GetStringValue("MatchingDeviceId")
		e.description, _, _ = k.GetStringValue("DriverDesc")
		e.instanceID, _, _ = k.GetStringValue("NetCfgInstanceId")
		k.Close()
		if e.hardwareID != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// adapterAddresses fetches the GetAdaptersAddresses table, growing the buffer
// as the call asks.
func adapterAddresses() ([]byte, error) {
	return fetchGrowing(15000, 3, windows.ERROR_BUFFER_OVERFLOW, func(buf []byte, size *uint32) error {
		return windows.GetAdaptersAddresses(windows.AF_UNSPEC, 0, 0,
			(*windows.IpAdapterAddresses)(unsafe.Pointer(&buf[0])), size)
	})
}

// fillAdapterAddresses resolves index, MAC, link state and speed for the
// adapter named by ctx.AdapterName.
func fillAdapterAddresses(ctx *types.WindowsContext, info *types.InterfaceInfo) error {
	buf, err := adapterAddresses()
	if err != nil {
		return err
	}

	for aa := (*windows.IpAdapterAddresses)(unsafe.Pointer(&buf[0])); aa != nil; aa = aa.Next {
		if !strings.EqualFold(windows.BytePtrToString(aa.AdapterName), ctx.AdapterName) {
			continue
		}
		ctx.AdapterIndex = aa.IfIndex
		info.Name = windows.UTF16PtrToString(aa.FriendlyName)
		info.MAC = net.HardwareAddr(append([]byte(nil), aa.PhysicalAddress[:aa.PhysicalAddressLength]...))
		info.LinkUp = aa.OperStatus == windows.IfOperStatusUp
		info.SpeedMbps = uint32(aa.TransmitLinkSpeed / 1_000_000)
		return nil
	}
	return errors.New("adapter " + ctx.AdapterName + " not in the address table")
}

// queryNDISClock opens the adapter's NDIS device and asks for its timestamp
// capabilities. On success with a readable clock the handle stays open in
// ctx; otherwise it is closed and ctx keeps HasNativeTimestamp false.
func queryNDISClock(ctx *types.WindowsContext) error {
	path, err := windows.UTF16PtrFromString(`\\.\Global\` + ctx.AdapterName)
	if err != nil {
		return err
	}
	h, err := windows.CreateFile(path, windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return fmt.Errorf("open NDIS adapter: %w", err)
	}

	buf, err := ndisQuery(h, oidTimestampCapability, 64)
	if err != nil {
		windows.CloseHandle(h)
		return err
	}
	caps, err := parseTimestampCaps(buf)
	if err != nil {
		windows.CloseHandle(h)
		return err
	}
	if !caps.native() {
		windows.CloseHandle(h)
		return fmt.Errorf("clock at %d Hz, cross timestamp %v", caps.FrequencyHz, caps.CrossTimestamp)
	}

	ctx.HasNativeTimestamp = true
	ctx.HardwareClockFrequency = caps.FrequencyHz
	ctx.NDISHandle = uintptr(h)
	log.Infof("windows: %s: native hardware clock at %d Hz", ctx.AdapterName, caps.FrequencyHz)
	return nil
}

// ndisQuery issues IOCTL_NDIS_QUERY_GLOBAL_STATS for oid.
func ndisQuery(h windows.Handle, oid uint32, size int) ([]byte, error) {
	in := oid
	out := make([]byte, size)
	var n uint32
	err := windows.DeviceIoControl(h, ioctlNDISQueryGlobalStats,
		(*byte)(unsafe.Pointer(&in)), uint32(unsafe.Sizeof(in)),
		&out[0], uint32(len(out)), &n, nil)
	if err != nil {
		return nil, fmt.Errorf("NDIS query 0x%08x: %w", oid, err)
	}
	return out[:n], nil
}

// ReadTimestamp reads the adapter's hardware clock when NDIS exposes one and
// the host performance counter otherwise.
func (b *windowsBackend) ReadTimestamp(ctx types.PlatformContext) (types.Timestamp, error) {
	const op = "read_timestamp"
	wc, ok := ctx.(*types.WindowsContext)
	if !ok || wc == nil {
		return types.Timestamp{}, result.New(result.InvalidParameter, op, "not a windows adapter context")
	}
	native := func() (uint64, error) {
		buf, err := ndisQuery(windows.Handle(wc.NDISHandle), oidTimestampGetCrossTimestamp, ndisHardwareCrossTimestampSize)
		if err != nil {
			return 0, err
		}
		return parseCrossTimestamp(buf)
	}
	host := func() (int64, error) {
		var counter int64
		err := windows.QueryPerformanceCounter(&counter)
		return counter, err
	}
	return adapterClock(wc, native, host)
}

func (b *windowsBackend) Teardown(ctx types.PlatformContext) {
	if wc, ok := ctx.(*types.WindowsContext); ok && wc != nil {
		if wc.NDISHandle != 0 {
			windows.CloseHandle(windows.Handle(wc.NDISHandle))
			wc.NDISHandle = 0
			wc.HasNativeTimestamp = false
		}
		log.Debugf("windows: released %s", wc.AdapterName)
	}
}

// InterfaceInfo refreshes link state.
func (b *windowsBackend) InterfaceInfo(ctx types.PlatformContext) (types.InterfaceInfo, error) {
	const op = "interface_info"
	wc, ok := ctx.(*types.WindowsContext)
	if !ok || wc == nil {
		return types.InterfaceInfo{}, result.New(result.InvalidParameter, op, "not a windows adapter context")
	}
	info := types.InterfaceInfo{Name: wc.AdapterName, TimestampEnabled: wc.HasNativeTimestamp}
	if err := fillAdapterAddresses(wc, &info); err != nil {
		return info, result.Wrap(result.OsSpecific, op, err, "GetAdaptersAddresses")
	}
	return info, nil
}
