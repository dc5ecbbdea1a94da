package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nativu5/ethernet-hal/pkg/accel/acceltest"
	"github.com/Nativu5/ethernet-hal/pkg/hal"
	"github.com/Nativu5/ethernet-hal/pkg/platform"
	"github.com/Nativu5/ethernet-hal/pkg/registry"
	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

const fullProfile = `
device: "0x125B"
vlan:
  filters: [100, 200]
  tag: {id: 100, priority: 5, dei: false}
priorityMap:
  0: 0
  5: 2
  7: 3
cbs:
  - trafficClass: 2
    enabled: true
    idleSlope: 20000
    sendSlope: -980000
    hiCredit: 3000
    loCredit: -3000
bandwidth:
  - {trafficClass: 2, percent: 40}
  - {trafficClass: 3, percent: 60}
rateLimits:
  - {trafficClass: 3, mbps: 2000}
tas:
  cycleTimeNs: 1000000
  baseTimeNs: 0
  gateControlList:
    - {gateState: 0x04, intervalNs: 300000}
    - {gateState: 0xFB, intervalNs: 700000}
framePreemption:
  preemptibleQueues: 0x03
  additionalFragmentSize: 1
`

type stubContext struct{}

func (stubContext) Kind() types.BackendKind { return types.BackendNone }

// stubBackend finds every adapter.
type stubBackend struct{}

func (stubBackend) Kind() types.BackendKind { return types.BackendNone }

func (stubBackend) LocateAdapter(types.DeviceDescriptor) (*platform.Adapter, error) {
	return &platform.Adapter{Context: stubContext{}}, nil
}

func (stubBackend) ReadTimestamp(types.PlatformContext) (types.Timestamp, error) {
	return types.Timestamp{}, nil
}

func (stubBackend) Teardown(types.PlatformContext) {}

func openDevice(t *testing.T, id uint16) (*hal.HAL, hal.Handle, *acceltest.Recorder) {
	t.Helper()
	rec := &acceltest.Recorder{}
	h := hal.New(hal.WithBackend(stubBackend{}), hal.WithAccelerator(rec))
	hd, err := h.Create(id)
	require.NoError(t, err)
	require.NoError(t, h.Open(hd))
	return h, hd, rec
}

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(fullProfile))
	require.NoError(t, err)

	assert.Equal(t, "0x125B", p.Device)
	assert.Equal(t, []uint16{100, 200}, p.VLAN.Filters)
	assert.Equal(t, map[uint8]uint8{0: 0, 5: 2, 7: 3}, p.PriorityMap)
	require.Len(t, p.CBS, 1)
	assert.Equal(t, int32(-980000), p.CBS[0].SendSlope)

	want := &types.TASConfig{
		CycleTimeNs: 1_000_000,
		GateControlList: []types.GateControlEntry{
			{GateState: 0x04, IntervalNs: 300_000},
			{GateState: 0xFB, IntervalNs: 700_000},
		},
	}
	if diff := cmp.Diff(want, p.TAS); diff != "" {
		t.Errorf("TAS mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint8(0x03), p.FramePreemption.PreemptibleQueues)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorContains(t, err, "empty")

	_, err = Parse(strings.NewReader("vlan:\n  filterz: [1]\n"))
	assert.ErrorContains(t, err, "filterz")

	_, err = Parse(strings.NewReader("priorityMap: [1, 2]\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tsn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullProfile), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, p.TAS)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	p, err := Parse(strings.NewReader(fullProfile))
	require.NoError(t, err)
	data, err := p.Marshal()
	require.NoError(t, err)

	again, err := Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	if diff := cmp.Diff(p, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	i210, _ := registry.Lookup(registry.DeviceI210Copper)
	i226, _ := registry.Lookup(registry.DeviceI226LM)

	p, err := Parse(strings.NewReader(fullProfile))
	require.NoError(t, err)
	require.NoError(t, p.Validate(i226))

	err = p.Validate(i210)
	require.Error(t, err)
	for _, section := range []string{"bandwidth", "rateLimits", "tas", "framePreemption"} {
		assert.ErrorContains(t, err, section)
	}
	assert.NotContains(t, err.Error(), "cbs:", "I210 has AVB shaping")

	bad := &Profile{
		VLAN:      &VLANSection{Filters: []uint16{4096}},
		Bandwidth: []BandwidthEntry{{TrafficClass: 0, Percent: 70}, {TrafficClass: 1, Percent: 40}},
		TAS:       &types.TASConfig{},
	}
	err = bad.Validate(i226)
	require.Error(t, err)
	assert.ErrorContains(t, err, "4096")
	assert.ErrorContains(t, err, "110%")
	assert.ErrorIs(t, err, result.ErrInvalidParameter)
}

func TestValidate_DevicePin(t *testing.T) {
	i226, _ := registry.Lookup(registry.DeviceI226LM)

	require.NoError(t, (&Profile{Device: "0x125B"}).Validate(i226))
	require.NoError(t, (&Profile{Device: "125b"}).Validate(i226))

	err := (&Profile{Device: "0x15F2"}).Validate(i226)
	require.Error(t, err)
	assert.ErrorContains(t, err, "profile is for 0x15F2")

	err = (&Profile{Device: "bogus"}).Validate(i226)
	assert.ErrorContains(t, err, "device:")
}

func TestApply(t *testing.T) {
	p, err := Parse(strings.NewReader(fullProfile))
	require.NoError(t, err)
	h, hd, rec := openDevice(t, registry.DeviceI226LM)

	require.NoError(t, p.Apply(h, hd))

	tag, err := h.GetVLANTag(hd)
	require.NoError(t, err)
	assert.Equal(t, types.VLANTag{ID: 100, Priority: 5}, tag)

	m, err := h.GetPriorityMapping(hd)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), m[5])
	assert.Equal(t, uint8(3), m[7])

	cbs, err := h.GetCBSConfig(hd, 2)
	require.NoError(t, err)
	assert.Equal(t, p.CBS[0].CBSConfig, cbs)

	assert.Len(t, rec.TAS(), 1)
	assert.Len(t, rec.FP(), 1)
	st, err := h.GetFramePreemptionStatus(hd)
	require.NoError(t, err)
	assert.True(t, st.Enabled)
}

func TestApply_InvalidLeavesDeviceUntouched(t *testing.T) {
	p := &Profile{
		VLAN: &VLANSection{Tag: &types.VLANTag{ID: 7}},
		TAS:  &types.TASConfig{CycleTimeNs: 0},
	}
	h, hd, rec := openDevice(t, registry.DeviceI226LM)

	err := p.Apply(h, hd)
	require.Error(t, err)

	tag, err := h.GetVLANTag(hd)
	require.NoError(t, err)
	assert.Equal(t, types.VLANTag{}, tag)
	assert.Empty(t, rec.TAS())
}

func TestApply_DeviceError(t *testing.T) {
	p := &Profile{
		TAS: &types.TASConfig{
			CycleTimeNs:     1000,
			GateControlList: []types.GateControlEntry{{GateState: 1, IntervalNs: 1000}},
		},
	}
	h, hd, rec := openDevice(t, registry.DeviceI225LM)
	rec.TASStatus = 2

	err := p.Apply(h, hd)
	assert.ErrorContains(t, err, "apply tas")
	assert.ErrorIs(t, err, result.ErrHardware)
}
