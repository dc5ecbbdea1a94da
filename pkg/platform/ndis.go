package platform

import (
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// NDIS request codes from ntddndis.h.
const (
	ioctlNDISQueryGlobalStats      = 0x00170002
	oidTimestampCapability         = 0x00010265
	oidTimestampGetCrossTimestamp  = 0x00010267
	ndisTimestampCapsMinSize       = 17
	ndisHardwareCrossTimestampSize = 32
)

// ndisClockCaps is the part of NDIS_TIMESTAMP_CAPABILITIES the backend uses.
type ndisClockCaps struct {
	FrequencyHz    uint64
	CrossTimestamp bool
}

// native reports whether the adapter clock can be read through a cross
// timestamp request.
func (c ndisClockCaps) native() bool {
	return c.FrequencyHz > 0 && c.CrossTimestamp
}

// parseTimestampCaps decodes NDIS_TIMESTAMP_CAPABILITIES: a 4-byte object
// header, padding, HardwareClockFrequencyHz at offset 8 and CrossTimestamp at 16.
func parseTimestampCaps(buf []byte) (ndisClockCaps, error) {
	if len(buf) < ndisTimestampCapsMinSize {
		return ndisClockCaps{}, fmt.Errorf("timestamp capabilities: short buffer of %d bytes", len(buf))
	}
	return ndisClockCaps{
		FrequencyHz:    binary.LittleEndian.Uint64(buf[8:16]),
		CrossTimestamp: buf[16] != 0,
	}, nil
}

// parseCrossTimestamp returns HardwareClockTimestamp from an
// NDIS_HARDWARE_CROSSTIMESTAMP, which sits between the two system samples.
func parseCrossTimestamp(buf []byte) (uint64, error) {
	if len(buf) < ndisHardwareCrossTimestampSize {
		return 0, fmt.Errorf("cross timestamp: short buffer of %d bytes", len(buf))
	}
	return binary.LittleEndian.Uint64(buf[16:24]), nil
}

// adapterClock reads the adapter's hardware clock when wc has one and falls
// back to the host performance counter when it has none or the read fails.
func adapterClock(wc *types.WindowsContext, native func() (uint64, error), host func() (int64, error)) (types.Timestamp, error) {
	const op = "read_timestamp"
	if wc.HasNativeTimestamp && native != nil {
		ticks, err := native()
		if err == nil {
			return types.TimestampFromNanos(ticksToNanos(ticks, wc.HardwareClockFrequency)), nil
		}
		log.Debugf("windows: %s hardware clock read failed, using performance counter: %v", wc.AdapterName, err)
	}
	counter, err := host()
	if err != nil {
		return types.Timestamp{}, result.Wrap(result.OsSpecific, op, err, "QueryPerformanceCounter")
	}
	return types.TimestampFromNanos(counterToNanos(counter, wc.CounterFrequency)), nil
}
