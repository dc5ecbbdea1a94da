//go:build linux

package platform

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// Kernel ABI values from linux/net_tstamp.h, linux/sockios.h and linux/timex.h.
const (
	siocSHWTSTAMP     = 0x89b0
	hwtstampTxOff     = 0
	hwtstampTxOn      = 1
	hwtstampFilterOff = 0
	hwtstampFilterAll = 1
	adjFrequency      = 0x0002
)

type hwtstampConfig struct {
	flags    int32
	txType   int32
	rxFilter int32
}

// ifreqData mirrors struct ifreq with ifr_data set; the tail pads the union.
type ifreqData struct {
	name [unix.IFNAMSIZ]byte
	data unsafe.Pointer
	_    [24]byte
}

type linuxBackend struct{}

func newBackend() Backend {
	return &linuxBackend{}
}

func (*linuxBackend) Kind() types.BackendKind { return types.BackendLinux }

// LocateAdapter scans sysfs for the first PCI function matching desc and
// opens its PHC when it has one.
func (b *linuxBackend) LocateAdapter(desc types.DeviceDescriptor) (*Adapter, error) {
	const op = "locate_adapter"

	addrs, err := FindPCIDevices(desc.VendorID, desc.DeviceID)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, result.Wrap(result.NoDevice, op, err, "PCI bus not visible")
	case errors.Is(err, os.ErrPermission):
		return nil, result.Wrap(result.AccessDenied, op, err, "cannot enumerate PCI devices")
	case err != nil:
		return nil, result.Wrap(result.OsSpecific, op, err, "cannot enumerate PCI devices")
	case len(addrs) == 0:
		return nil, result.New(result.NoDevice, op, "adapter %s not present", desc.PCIID())
	}

	pciAddr := addrs[0]
	ctx := &types.LinuxContext{PCIAddress: pciAddr, PHCIndex: -1, PHCFd: -1}

	// Best-effort enrichment, errors are non-fatal
	if names, err := GetNetNames(pciAddr); err == nil && len(names) > 0 {
		ctx.IfName = names[0]
	}
	if driver, err := GetPCIDevDriver(pciAddr); err == nil {
		ctx.Driver = driver
	}
	info := queryInterface(ctx)

	if idx, err := GetPHCIndex(pciAddr); err == nil {
		ctx.PHCIndex = idx
		ctx.PHCPath = filepath.Join(devDir, fmt.Sprintf("ptp%d", idx))
		openPHC(ctx)
	} else {
		log.Debugf("linux: %s: %v", pciAddr, err)
	}
	info.TimestampEnabled = ctx.HasPHC

	log.Infof("linux: found %s at %s (interface %q, driver %q, phc %q)",
		desc.Name, pciAddr, ctx.IfName, ctx.Driver, ctx.PHCPath)

	return &Adapter{Interface: info, Context: ctx}, nil
}

// openPHC opens the PTP clock device. Failure degrades the context to the
// host monotonic clock instead of failing the whole locate.
func openPHC(ctx *types.LinuxContext) {
	fd, err := unix.Open(ctx.PHCPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		fd, err = unix.Open(ctx.PHCPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	}
	if err != nil {
		log.Warnf("linux: cannot open %s, using host monotonic clock: %v", ctx.PHCPath, err)
		return
	}
	ctx.PHCFd = fd
	ctx.HasPHC = true

	if caps, err := unix.IoctlPtpClockGetcaps(fd); err == nil {
		ctx.MaxAdjPPB = caps.Max_adj
	} else {
		log.Debugf("linux: PTP_CLOCK_GETCAPS on %s failed: %v", ctx.PHCPath, err)
	}
}

// queryInterface reads link attributes through netlink and sysfs.
func queryInterface(ctx *types.LinuxContext) types.InterfaceInfo {
	info := types.InterfaceInfo{Name: ctx.IfName}
	if ctx.IfName == "" {
		return info
	}
	if link, err := netlink.LinkByName(ctx.IfName); err == nil {
		attrs := link.Attrs()
		ctx.IfIndex = attrs.Index
		info.MAC = attrs.HardwareAddr
		info.LinkUp = attrs.OperState == netlink.OperUp
	} else {
		log.Debugf("linux: netlink lookup of %s failed: %v", ctx.IfName, err)
	}
	info.SpeedMbps = GetLinkSpeed(ctx.IfName)
	return info
}

func linuxContext(op string, ctx types.PlatformContext) (*types.LinuxContext, error) {
	lc, ok := ctx.(*types.LinuxContext)
	if !ok || lc == nil {
		return nil, result.New(result.InvalidParameter, op, "not a linux adapter context")
	}
	return lc, nil
}

func errnoKind(err error) result.Kind {
	switch {
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return result.AccessDenied
	case errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return result.NoDevice
	case errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.ENOTTY):
		return result.NotSupported
	case errors.Is(err, unix.EBUSY):
		return result.DeviceBusy
	}
	return result.OsSpecific
}

func (b *linuxBackend) ReadTimestamp(ctx types.PlatformContext) (types.Timestamp, error) {
	const op = "read_timestamp"
	lc, err := linuxContext(op, ctx)
	if err != nil {
		return types.Timestamp{}, err
	}

	clock := int32(unix.CLOCK_MONOTONIC)
	if lc.HasPHC {
		clock = lc.ClockID()
	}
	var ts unix.Timespec
	if err := unix.ClockGettime(clock, &ts); err != nil {
		return types.Timestamp{}, result.Wrap(errnoKind(err), op, err, "clock_gettime")
	}
	sec, nsec := ts.Unix()
	return types.Timestamp{Seconds: uint64(sec), Nanoseconds: uint32(nsec)}, nil
}

func (b *linuxBackend) Teardown(ctx types.PlatformContext) {
	lc, ok := ctx.(*types.LinuxContext)
	if !ok || lc == nil {
		return
	}
	if lc.PHCFd >= 0 {
		if err := unix.Close(lc.PHCFd); err != nil {
			log.Warnf("linux: closing %s: %v", lc.PHCPath, err)
		}
	}
	lc.PHCFd = -1
	lc.HasPHC = false
}

// SetTimestamp steps the PHC.
func (b *linuxBackend) SetTimestamp(ctx types.PlatformContext, ts types.Timestamp) error {
	const op = "set_timestamp"
	lc, err := linuxContext(op, ctx)
	if err != nil {
		return err
	}
	if !lc.HasPHC {
		return result.New(result.NotSupported, op, "%s has no PTP hardware clock", lc.PCIAddress)
	}
	spec, err := phcTimespec(ts)
	if err != nil {
		return result.Wrap(result.InvalidParameter, op, err, "time %s", ts)
	}
	if err := unix.ClockSettime(lc.ClockID(), &spec); err != nil {
		return result.Wrap(errnoKind(err), op, err, "clock_settime on %s", lc.PHCPath)
	}
	return nil
}

// phcTimespec converts ts field by field; going through a nanosecond count
// would overflow for large second values.
func phcTimespec(ts types.Timestamp) (unix.Timespec, error) {
	if ts.Seconds > math.MaxInt64 {
		return unix.Timespec{}, unix.ERANGE
	}
	return unix.TimeToTimespec(time.Unix(int64(ts.Seconds), int64(ts.Nanoseconds)))
}

// AdjustFrequency slews the PHC by ppb parts per billion.
func (b *linuxBackend) AdjustFrequency(ctx types.PlatformContext, ppb int32) error {
	const op = "adjust_frequency"
	lc, err := linuxContext(op, ctx)
	if err != nil {
		return err
	}
	if !lc.HasPHC {
		return result.New(result.NotSupported, op, "%s has no PTP hardware clock", lc.PCIAddress)
	}
	if lc.MaxAdjPPB > 0 && (ppb > lc.MaxAdjPPB || ppb < -lc.MaxAdjPPB) {
		return result.New(result.InvalidParameter, op, "%d ppb exceeds the clock limit of %d ppb", ppb, lc.MaxAdjPPB)
	}
	tx := unix.Timex{Modes: adjFrequency}
	// scaled ppm: ppm with a 16-bit binary fraction
	setField(&tx.Freq, int64(ppb)*65536/1000)
	if _, err := unix.ClockAdjtime(lc.ClockID(), &tx); err != nil {
		return result.Wrap(errnoKind(err), op, err, "clock_adjtime on %s", lc.PHCPath)
	}
	return nil
}

// setField assigns v to a Timex field whose width depends on the architecture.
func setField[T ~int32 | ~int64](field *T, v int64) {
	*field = T(v)
}

// EnableTimestamping switches hardware packet timestamping via SIOCSHWTSTAMP.
func (b *linuxBackend) EnableTimestamping(ctx types.PlatformContext, enable bool) error {
	const op = "enable_timestamping"
	lc, err := linuxContext(op, ctx)
	if err != nil {
		return err
	}
	if lc.IfName == "" {
		return result.New(result.NoDevice, op, "%s has no network interface", lc.PCIAddress)
	}

	cfg := hwtstampConfig{txType: hwtstampTxOff, rxFilter: hwtstampFilterOff}
	if enable {
		cfg = hwtstampConfig{txType: hwtstampTxOn, rxFilter: hwtstampFilterAll}
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return result.Wrap(errnoKind(err), op, err, "socket")
	}
	defer unix.Close(fd)

	var ifr ifreqData
	copy(ifr.name[:unix.IFNAMSIZ-1], lc.IfName)
	ifr.data = unsafe.Pointer(&cfg)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), siocSHWTSTAMP, uintptr(unsafe.Pointer(&ifr)))
	runtime.KeepAlive(&cfg)
	if errno != 0 {
		return result.Wrap(errnoKind(errno), op, errno, "SIOCSHWTSTAMP on %s", lc.IfName)
	}
	return nil
}

// Transmit sends a complete Ethernet frame out of the adapter's interface.
func (b *linuxBackend) Transmit(ctx types.PlatformContext, frame []byte) error {
	const op = "transmit"
	lc, err := linuxContext(op, ctx)
	if err != nil {
		return err
	}
	if lc.IfIndex == 0 {
		return result.New(result.NoDevice, op, "%s has no resolved interface index", lc.PCIAddress)
	}
	if len(frame) < 14 {
		return result.New(result.InvalidParameter, op, "frame of %d bytes is shorter than an Ethernet header", len(frame))
	}

	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return result.Wrap(errnoKind(err), op, err, "AF_PACKET socket")
	}
	defer unix.Close(fd)

	sa := &unix.SockaddrLinklayer{Protocol: proto, Ifindex: lc.IfIndex, Halen: 6}
	copy(sa.Addr[:], frame[:6])
	if err := unix.Sendto(fd, frame, 0, sa); err != nil {
		return result.Wrap(errnoKind(err), op, err, "sendto %s", lc.IfName)
	}
	return nil
}

// InterfaceInfo refreshes link state.
func (b *linuxBackend) InterfaceInfo(ctx types.PlatformContext) (types.InterfaceInfo, error) {
	lc, err := linuxContext("interface_info", ctx)
	if err != nil {
		return types.InterfaceInfo{}, err
	}
	info := queryInterface(lc)
	info.TimestampEnabled = lc.HasPHC
	return info, nil
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
