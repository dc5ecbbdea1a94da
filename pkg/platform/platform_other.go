//go:build !linux && !windows

package platform

import (
	"time"

	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

var processStart = time.Now()

type otherBackend struct{}

func newBackend() Backend {
	return otherBackend{}
}

func (otherBackend) Kind() types.BackendKind { return types.BackendNone }

func (otherBackend) LocateAdapter(desc types.DeviceDescriptor) (*Adapter, error) {
	return nil, result.New(result.NotSupported, "locate_adapter", "no platform backend for this OS")
}

// ReadTimestamp returns monotonic time since process start.
func (otherBackend) ReadTimestamp(types.PlatformContext) (types.Timestamp, error) {
	return types.TimestampFromNanos(uint64(time.Since(processStart))), nil
}

func (otherBackend) Teardown(types.PlatformContext) {}
