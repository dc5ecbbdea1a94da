package types

// BackendKind names the platform backend that produced a context.
type BackendKind string

const (
	BackendLinux   BackendKind = "linux"
	BackendWindows BackendKind = "windows"
	BackendNone    BackendKind = "none"
)

// PlatformContext is the tagged per-OS adapter state owned by a device handle.
// Switch on the concrete type (*LinuxContext, *WindowsContext) to reach it.
type PlatformContext interface {
	Kind() BackendKind
}

// LinuxContext is the adapter state discovered through sysfs and netlink.
type LinuxContext struct {
	PCIAddress string
	Driver     string
	IfName     string
	IfIndex    int
	// PHCIndex is N of /dev/ptpN, or -1 when the adapter exposes no PHC.
	PHCIndex int
	PHCPath  string
	// PHCFd is the open PHC descriptor, or -1.
	PHCFd     int
	HasPHC    bool
	MaxAdjPPB int32
}

func (*LinuxContext) Kind() BackendKind { return BackendLinux }

// ClockID returns the dynamic POSIX clock ID of the open PHC (FD_TO_CLOCKID).
func (c *LinuxContext) ClockID() int32 {
	return int32((^c.PHCFd)<<3 | 3)
}

// WindowsContext is the adapter state discovered through the registry.
type WindowsContext struct {
	// AdapterName is the NetCfgInstanceId GUID.
	AdapterName        string
	AdapterIndex       uint32
	Description        string
	// HasNativeTimestamp is set when NDIS reports a readable hardware clock.
	HasNativeTimestamp bool
	// HardwareClockFrequency is the adapter clock rate in Hz reported by NDIS.
	HardwareClockFrequency uint64
	// NDISHandle is the open NDIS adapter handle, 0 when none is held.
	NDISHandle uintptr
	// CounterFrequency is the QueryPerformanceFrequency result in Hz.
	CounterFrequency int64
}

func (*WindowsContext) Kind() BackendKind { return BackendWindows }

// CopyContext returns a shallow copy of ctx so callers cannot alter the
// state a handle owns.
func CopyContext(ctx PlatformContext) PlatformContext {
	switch c := ctx.(type) {
	case *LinuxContext:
		if c == nil {
			return nil
		}
		cp := *c
		return &cp
	case *WindowsContext:
		if c == nil {
			return nil
		}
		cp := *c
		return &cp
	}
	return ctx
}
