// Package platform locates adapters and talks to their clocks through the
// host OS. Exactly one backend is compiled into a build: linux, windows, or
// a stub for every other OS. New returns it.
package platform

import (
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// Adapter is what LocateAdapter discovered about a physical adapter.
type Adapter struct {
	// Description is the OS-reported adapter description; empty if the OS
	// has none, in which case the registry description is kept.
	Description string
	Interface   types.InterfaceInfo
	Context     types.PlatformContext
}

// Backend is the per-OS adapter access layer.
type Backend interface {
	Kind() types.BackendKind
	// LocateAdapter finds the adapter for desc. It is idempotent and holds
	// no resources when it fails.
	LocateAdapter(desc types.DeviceDescriptor) (*Adapter, error)
	// ReadTimestamp reads the adapter clock, or the host monotonic clock
	// when the adapter has none. Successive reads never go backwards unless
	// the clock is set in between.
	ReadTimestamp(ctx types.PlatformContext) (types.Timestamp, error)
	// Teardown releases everything LocateAdapter acquired.
	Teardown(ctx types.PlatformContext)
}

// TimestampEnabler is implemented by backends that can switch hardware
// packet timestamping on and off.
type TimestampEnabler interface {
	EnableTimestamping(ctx types.PlatformContext, enable bool) error
}

// ClockSetter is implemented by backends that can set the adapter clock.
type ClockSetter interface {
	SetTimestamp(ctx types.PlatformContext, ts types.Timestamp) error
}

// FrequencyAdjuster is implemented by backends that can slew the adapter clock.
type FrequencyAdjuster interface {
	AdjustFrequency(ctx types.PlatformContext, ppb int32) error
}

// Transmitter is implemented by backends that can send raw frames.
type Transmitter interface {
	Transmit(ctx types.PlatformContext, frame []byte) error
}

// InterfaceQuerier is implemented by backends that can refresh link state.
type InterfaceQuerier interface {
	InterfaceInfo(ctx types.PlatformContext) (types.InterfaceInfo, error)
}

// New returns the backend compiled into this build.
func New() Backend {
	return newBackend()
}
