package hal

import (
	"sync"

	"github.com/Nativu5/ethernet-hal/pkg/platform"
	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// fakeContext is the platform context handed out by fakeBackend.
type fakeContext struct {
	id uint16
}

func (*fakeContext) Kind() types.BackendKind { return types.BackendNone }

// fakeBackend finds the adapters in present and keeps a clock that advances
// by one microsecond per read.
type fakeBackend struct {
	mu        sync.Mutex
	present   map[uint16]bool
	locateErr error
	locates   int
	teardowns int
	clock     uint64
	enabled   bool
	freq      int32
	sent      [][]byte
}

var (
	_ platform.Backend           = (*fakeBackend)(nil)
	_ platform.TimestampEnabler  = (*fakeBackend)(nil)
	_ platform.ClockSetter       = (*fakeBackend)(nil)
	_ platform.FrequencyAdjuster = (*fakeBackend)(nil)
	_ platform.Transmitter       = (*fakeBackend)(nil)
	_ platform.InterfaceQuerier  = (*fakeBackend)(nil)
)

func newFakeBackend(ids ...uint16) *fakeBackend {
	b := &fakeBackend{present: make(map[uint16]bool), clock: 1_000_000_000}
	for _, id := range ids {
		b.present[id] = true
	}
	return b
}

func (b *fakeBackend) Kind() types.BackendKind { return types.BackendNone }

func (b *fakeBackend) LocateAdapter(desc types.DeviceDescriptor) (*platform.Adapter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locates++
	if b.locateErr != nil {
		return nil, b.locateErr
	}
	if !b.present[desc.DeviceID] {
		return nil, result.New(result.NoDevice, "locate_adapter", "adapter %s not present", desc.PCIID())
	}
	return &platform.Adapter{
		Description: "Fake " + desc.Name,
		Interface:   types.InterfaceInfo{Name: "fake0", SpeedMbps: desc.MaxLinkSpeedMbps(), LinkUp: true},
		Context:     &fakeContext{id: desc.DeviceID},
	}, nil
}

func (b *fakeBackend) ReadTimestamp(types.PlatformContext) (types.Timestamp, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock += 1000
	return types.TimestampFromNanos(b.clock), nil
}

func (b *fakeBackend) Teardown(types.PlatformContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardowns++
}

func (b *fakeBackend) EnableTimestamping(_ types.PlatformContext, enable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enable
	return nil
}

func (b *fakeBackend) SetTimestamp(_ types.PlatformContext, ts types.Timestamp) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = ts.Nanos()
	return nil
}

func (b *fakeBackend) AdjustFrequency(_ types.PlatformContext, ppb int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.freq = ppb
	return nil
}

func (b *fakeBackend) Transmit(_ types.PlatformContext, frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, append([]byte(nil), frame...))
	return nil
}

func (b *fakeBackend) InterfaceInfo(types.PlatformContext) (types.InterfaceInfo, error) {
	return types.InterfaceInfo{Name: "fake0", SpeedMbps: 100, LinkUp: false}, nil
}

func (b *fakeBackend) counts() (locates, teardowns int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locates, b.teardowns
}

// minimalBackend implements only the required Backend methods.
type minimalBackend struct{ inner *fakeBackend }

func (m minimalBackend) Kind() types.BackendKind { return types.BackendNone }

func (m minimalBackend) LocateAdapter(desc types.DeviceDescriptor) (*platform.Adapter, error) {
	return m.inner.LocateAdapter(desc)
}

func (m minimalBackend) ReadTimestamp(ctx types.PlatformContext) (types.Timestamp, error) {
	return m.inner.ReadTimestamp(ctx)
}

func (m minimalBackend) Teardown(ctx types.PlatformContext) { m.inner.Teardown(ctx) }
