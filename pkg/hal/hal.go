// Package hal is the public surface of the Ethernet HAL. A HAL owns an arena
// of device handles; every capability-dependent call on a handle checks its
// arguments, then the handle's capability mask, then that the handle is open,
// and only then reaches the platform backend or the TSN engine.
package hal

import (
	"math"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Nativu5/ethernet-hal/pkg/accel"
	"github.com/Nativu5/ethernet-hal/pkg/platform"
	"github.com/Nativu5/ethernet-hal/pkg/registry"
	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/tsn"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// HAL is safe for concurrent use across handles. Calls on the same handle
// must be serialized by the caller.
type HAL struct {
	backend  platform.Backend
	acc      accel.Accelerator
	reg      *registry.Registry
	reporter result.Reporter

	mu    sync.Mutex
	slots []*slot
	gens  []uint32
	free  []uint32
}

// Option configures a HAL.
type Option func(*HAL)

// WithBackend replaces the platform backend compiled into the build.
func WithBackend(b platform.Backend) Option {
	return func(h *HAL) { h.backend = b }
}

// WithAccelerator enables the hardware TSN paths.
func WithAccelerator(a accel.Accelerator) Option {
	return func(h *HAL) { h.acc = a }
}

// WithRegistry replaces the built-in device registry.
func WithRegistry(r *registry.Registry) Option {
	return func(h *HAL) { h.reg = r }
}

// New returns a HAL with no open handles.
func New(opts ...Option) *HAL {
	h := &HAL{}
	for _, o := range opts {
		o(h)
	}
	if h.backend == nil {
		h.backend = platform.New()
	}
	if h.reg == nil {
		h.reg = registry.Default()
	}
	return h
}

// Registry returns the device table handles are created from.
func (h *HAL) Registry() *registry.Registry { return h.reg }

// Backend returns the platform backend in use.
func (h *HAL) Backend() platform.Backend { return h.backend }

// LastError returns the message of the most recent failed call on h.
func (h *HAL) LastError() string { return h.reporter.LastError() }

// Version returns the HAL API version.
func Version() string { return result.Version() }

func (h *HAL) fail(err error) error {
	return h.reporter.Record(err)
}

// ───────────────────────────────────────────
//  Lifecycle
// ───────────────────────────────────────────

// Create returns a handle for deviceID with one reference. No platform
// resources are acquired until Open.
func (h *HAL) Create(deviceID uint16) (Handle, error) {
	const op = "create"
	desc, ok := h.reg.Lookup(deviceID)
	if !ok {
		return Handle{}, h.fail(result.New(result.NotSupported, op, "device %s is not supported", registry.FormatDeviceID(deviceID)))
	}
	s := &slot{
		state: StateCreated,
		refs:  1,
		desc:  desc,
		tsn:   tsn.NewDevice(desc),
	}
	hd := h.alloc(s)
	log.Debugf("hal: created %s for %s (%s)", hd, desc.Name, desc.PCIID())
	return hd, nil
}

// Open locates the adapter and binds its platform resources to hd. A failed
// Open leaves hd in the created state. A handle can be opened once.
func (h *HAL) Open(hd Handle) error {
	const op = "open"
	s, err := h.lookup(op, hd)
	if err != nil {
		return h.fail(err)
	}
	switch s.state {
	case StateOpened:
		return h.fail(result.New(result.DeviceBusy, op, "%s is already open", hd))
	case StateClosed:
		return h.fail(result.New(result.NotSupported, op, "%s was closed and cannot be reopened", hd))
	}

	adapter, err := h.backend.LocateAdapter(s.desc)
	if err != nil {
		return h.fail(result.WithOp(op, err))
	}
	if adapter.Description != "" {
		s.desc.Description = adapter.Description
	}
	s.ctx = adapter.Context
	s.iface = adapter.Interface

	if h.acc != nil {
		ref := &accel.DeviceRef{VendorID: s.desc.VendorID, DeviceID: s.desc.DeviceID, Platform: s.ctx}
		if st := h.acc.Attach(ref); st == accel.StatusOK {
			s.ref = ref
		} else {
			log.Warnf("hal: %s: accelerator attach failed with status %d, hardware TSN unavailable", hd, st)
		}
	}
	s.tsn.Bind(h.acc, s.ref, h.sender(s.ctx))
	s.state = StateOpened

	log.Infof("hal: opened %s (%s, %s backend)", hd, s.desc.Name, h.backend.Kind())
	return nil
}

func (h *HAL) sender(ctx types.PlatformContext) tsn.SendFunc {
	tx, ok := h.backend.(platform.Transmitter)
	if !ok {
		return nil
	}
	return func(frame []byte) error { return tx.Transmit(ctx, frame) }
}

// teardown releases everything Open acquired.
func (h *HAL) teardown(hd Handle, s *slot) {
	if s.ref != nil {
		h.acc.Detach(s.ref)
		s.ref = nil
	}
	s.tsn.Unbind()
	h.backend.Teardown(s.ctx)
	s.state = StateClosed
	log.Infof("hal: closed %s (%s)", hd, s.desc.Name)
}

// Close tears down an open handle. Closing a handle that is not open only
// logs a warning.
func (h *HAL) Close(hd Handle) error {
	s, err := h.lookup("close", hd)
	if err != nil {
		return h.fail(err)
	}
	if s.state != StateOpened {
		log.Warnf("hal: close of %s ignored, handle is %s", hd, s.state)
		return nil
	}
	h.teardown(hd, s)
	return nil
}

// Retain adds a reference to hd.
func (h *HAL) Retain(hd Handle) error {
	s, err := h.lookup("retain", hd)
	if err != nil {
		return h.fail(err)
	}
	h.mu.Lock()
	s.refs++
	h.mu.Unlock()
	return nil
}

// Release drops a reference to hd and destroys it at zero. A handle that is
// still open is torn down first, with a warning.
func (h *HAL) Release(hd Handle) error {
	s, err := h.lookup("release", hd)
	if err != nil {
		return h.fail(err)
	}
	h.mu.Lock()
	s.refs--
	last := s.refs == 0
	h.mu.Unlock()
	if !last {
		return nil
	}

	if s.state == StateOpened {
		log.Warnf("hal: %s destroyed while open, closing it", hd)
		h.teardown(hd, s)
	}
	h.destroy(hd)
	log.Debugf("hal: destroyed %s", hd)
	return nil
}

// State returns the lifecycle state of hd.
func (h *HAL) State(hd Handle) (State, error) {
	s, err := h.lookup("state", hd)
	if err != nil {
		return StateDestroyed, h.fail(err)
	}
	return s.state, nil
}

// OpenDevice parses id (see registry.ParseDeviceID), creates and opens a
// handle. Nothing is left allocated on failure.
func (h *HAL) OpenDevice(id string) (Handle, error) {
	const op = "open_device"
	deviceID, err := registry.ParseDeviceID(id)
	if err != nil {
		return Handle{}, h.fail(result.Wrap(result.InvalidParameter, op, err, "bad device id"))
	}
	hd, err := h.Create(deviceID)
	if err != nil {
		return Handle{}, err
	}
	if err := h.Open(hd); err != nil {
		_ = h.Release(hd)
		return Handle{}, err
	}
	return hd, nil
}

// Enumerate probes every registry entry and returns the descriptors of the
// adapters present, in registry order. Probe resources are released at once.
func (h *HAL) Enumerate() ([]types.DeviceDescriptor, error) {
	const op = "enumerate"
	var (
		found   []types.DeviceDescriptor
		lastErr error
	)
	for _, desc := range h.reg.All() {
		adapter, err := h.backend.LocateAdapter(desc)
		if err != nil {
			switch result.KindOf(err) {
			case result.NoDevice, result.NotSupported:
				log.Debugf("hal: probe %s: %v", desc.PCIID(), err)
			default:
				log.Warnf("hal: probe %s: %v", desc.PCIID(), err)
				lastErr = err
			}
			continue
		}
		h.backend.Teardown(adapter.Context)
		if adapter.Description != "" {
			desc.Description = adapter.Description
		}
		found = append(found, desc)
	}
	if len(found) == 0 && lastErr != nil {
		return nil, h.fail(result.WithOp(op, lastErr))
	}
	return found, nil
}

// ───────────────────────────────────────────
//  Capability gate
// ───────────────────────────────────────────

// gate checks bit against the handle's fixed mask and that it is open.
func (h *HAL) gate(op string, hd Handle, s *slot, bit types.Capability) error {
	if !s.desc.HasCapability(bit) {
		return result.New(result.NotSupported, op, "%s lacks %s", s.desc.Name, bit.Name())
	}
	if s.state != StateOpened {
		return result.New(result.NoDevice, op, "%s is %s, not open", hd, s.state)
	}
	return nil
}

// gated resolves hd and runs the gate in one step, for operations whose
// arguments are already known to be valid.
func (h *HAL) gated(op string, hd Handle, bit types.Capability) (*slot, error) {
	s, err := h.lookup(op, hd)
	if err != nil {
		return nil, err
	}
	if err := h.gate(op, hd, s, bit); err != nil {
		return nil, err
	}
	return s, nil
}

// ───────────────────────────────────────────
//  Ungated reads
// ───────────────────────────────────────────

// GetCapabilities returns the capability mask of hd.
func (h *HAL) GetCapabilities(hd Handle) (types.Capability, error) {
	s, err := h.lookup("get_capabilities", hd)
	if err != nil {
		return 0, h.fail(err)
	}
	return s.desc.Capabilities, nil
}

// HasCapability is false for invalid handles.
func (h *HAL) HasCapability(hd Handle, c types.Capability) bool {
	s, err := h.lookup("has_capability", hd)
	if err != nil {
		return false
	}
	return s.desc.HasCapability(c)
}

// GetDeviceInfo returns the descriptor, link details and a copy of the
// platform context of hd.
func (h *HAL) GetDeviceInfo(hd Handle) (types.DeviceInfo, error) {
	s, err := h.lookup("get_device_info", hd)
	if err != nil {
		return types.DeviceInfo{}, h.fail(err)
	}
	iface := s.iface
	iface.MAC = append(net.HardwareAddr(nil), s.iface.MAC...)
	return types.DeviceInfo{Descriptor: s.desc, Interface: iface, Platform: types.CopyContext(s.ctx)}, nil
}

// GetInterfaceInfo returns link details, refreshed from the backend when the
// handle is open.
func (h *HAL) GetInterfaceInfo(hd Handle) (types.InterfaceInfo, error) {
	const op = "get_interface_info"
	s, err := h.lookup(op, hd)
	if err != nil {
		return types.InterfaceInfo{}, h.fail(err)
	}
	if q, ok := h.backend.(platform.InterfaceQuerier); ok && s.state == StateOpened {
		info, err := q.InterfaceInfo(s.ctx)
		if err != nil {
			return s.iface, h.fail(result.WithOp(op, err))
		}
		info.TimestampEnabled = s.iface.TimestampEnabled
		s.iface = info
	}
	return s.iface, nil
}

// GetTASStatus returns the last applied Time-Aware Shaper state.
func (h *HAL) GetTASStatus(hd Handle) (types.TASStatus, error) {
	s, err := h.lookup("get_tas_status", hd)
	if err != nil {
		return types.TASStatus{}, h.fail(err)
	}
	return s.tsn.TASStatus(), nil
}

// GetFramePreemptionStatus returns the last applied frame preemption state.
func (h *HAL) GetFramePreemptionStatus(hd Handle) (types.FramePreemptionStatus, error) {
	s, err := h.lookup("get_frame_preemption_status", hd)
	if err != nil {
		return types.FramePreemptionStatus{}, h.fail(err)
	}
	return s.tsn.FramePreemptionStatus(), nil
}

// GateStateAt evaluates the software gate schedule of hd at ns. ok is false
// when the handle has none.
func (h *HAL) GateStateAt(hd Handle, ns uint64) (state uint8, ok bool, err error) {
	s, err := h.lookup("gate_state_at", hd)
	if err != nil {
		return tsn.AllGatesOpen, false, h.fail(err)
	}
	state, ok = s.tsn.GateStateAt(ns)
	return state, ok, nil
}

// ───────────────────────────────────────────
//  IEEE 1588 clock
// ───────────────────────────────────────────

// EnableTimestamping switches hardware packet timestamping. Backends that
// cannot toggle it only record the flag.
func (h *HAL) EnableTimestamping(hd Handle, enable bool) error {
	const op = "enable_timestamping"
	s, err := h.gated(op, hd, types.CapBasic1588)
	if err != nil {
		return h.fail(err)
	}
	if en, ok := h.backend.(platform.TimestampEnabler); ok {
		if err := en.EnableTimestamping(s.ctx, enable); err != nil {
			return h.fail(result.WithOp(op, err))
		}
	}
	s.iface.TimestampEnabled = enable
	return nil
}

// ReadTimestamp reads the adapter clock.
func (h *HAL) ReadTimestamp(hd Handle) (types.Timestamp, error) {
	const op = "read_timestamp"
	s, err := h.gated(op, hd, types.CapBasic1588)
	if err != nil {
		return types.Timestamp{}, h.fail(err)
	}
	ts, err := h.backend.ReadTimestamp(s.ctx)
	if err != nil {
		return types.Timestamp{}, h.fail(result.WithOp(op, err))
	}
	return ts, nil
}

// SetTimestamp steps the adapter clock to ts.
func (h *HAL) SetTimestamp(hd Handle, ts types.Timestamp) error {
	const op = "set_timestamp"
	if !ts.Valid() {
		return h.fail(result.New(result.InvalidParameter, op, "nanoseconds %d out of range", ts.Nanoseconds))
	}
	if ts.Seconds > math.MaxInt64 {
		return h.fail(result.New(result.InvalidParameter, op, "seconds %d out of range", ts.Seconds))
	}
	s, err := h.gated(op, hd, types.CapBasic1588)
	if err != nil {
		return h.fail(err)
	}
	cs, ok := h.backend.(platform.ClockSetter)
	if !ok {
		return h.fail(result.New(result.NotSupported, op, "%s backend cannot set the clock", h.backend.Kind()))
	}
	if err := cs.SetTimestamp(s.ctx, ts); err != nil {
		return h.fail(result.WithOp(op, err))
	}
	return nil
}

// AdjustFrequency slews the adapter clock by ppb parts per billion.
func (h *HAL) AdjustFrequency(hd Handle, ppb int32) error {
	const op = "adjust_frequency"
	s, err := h.gated(op, hd, types.CapBasic1588)
	if err != nil {
		return h.fail(err)
	}
	fa, ok := h.backend.(platform.FrequencyAdjuster)
	if !ok {
		return h.fail(result.New(result.NotSupported, op, "%s backend cannot adjust the clock", h.backend.Kind()))
	}
	if err := fa.AdjustFrequency(s.ctx, ppb); err != nil {
		return h.fail(result.WithOp(op, err))
	}
	return nil
}

// ───────────────────────────────────────────
//  TSN
// ───────────────────────────────────────────

// SetupTimeAwareShaper applies a gate control list to hd.
func (h *HAL) SetupTimeAwareShaper(hd Handle, cfg *types.TASConfig) error {
	const op = "setup_time_aware_shaper"
	if err := tsn.ValidateTAS(op, cfg); err != nil {
		return h.fail(err)
	}
	s, err := h.gated(op, hd, types.CapTSNTAS)
	if err != nil {
		return h.fail(err)
	}
	return h.fail(s.tsn.SetupTimeAwareShaper(cfg))
}

// SetupFramePreemption marks the given queues preemptible.
func (h *HAL) SetupFramePreemption(hd Handle, cfg *types.FramePreemptionConfig) error {
	const op = "setup_frame_preemption"
	if err := tsn.ValidateFramePreemption(op, cfg); err != nil {
		return h.fail(err)
	}
	s, err := h.gated(op, hd, types.CapTSNFP)
	if err != nil {
		return h.fail(err)
	}
	return h.fail(s.tsn.SetupFramePreemption(cfg))
}

// XmitTimedPacket needs no capability: without enhanced timestamping the
// frame is sent immediately.
func (h *HAL) XmitTimedPacket(hd Handle, frame []byte, launch types.Timestamp) error {
	const op = "xmit_timed_packet"
	if err := tsn.ValidatePacket(op, frame); err != nil {
		return h.fail(err)
	}
	s, err := h.lookup(op, hd)
	if err != nil {
		return h.fail(err)
	}
	if s.state != StateOpened {
		return h.fail(result.New(result.NoDevice, op, "%s is %s, not open", hd, s.state))
	}
	return h.fail(s.tsn.XmitTimedPacket(frame, launch))
}

// ───────────────────────────────────────────
//  VLAN and QoS
// ───────────────────────────────────────────

// ConfigureVLANFilter adds or removes vlanID from the receive filter.
func (h *HAL) ConfigureVLANFilter(hd Handle, vlanID uint16, enable bool) error {
	const op = "configure_vlan_filter"
	if err := tsn.ValidateVLANID(op, vlanID); err != nil {
		return h.fail(err)
	}
	s, err := h.gated(op, hd, types.CapVLANFilter)
	if err != nil {
		return h.fail(err)
	}
	return h.fail(s.tsn.ConfigureVLANFilter(vlanID, enable))
}

// SetVLANTag sets the tag inserted on transmit.
func (h *HAL) SetVLANTag(hd Handle, tag *types.VLANTag) error {
	const op = "set_vlan_tag"
	if err := tsn.ValidateVLANTag(op, tag); err != nil {
		return h.fail(err)
	}
	s, err := h.gated(op, hd, types.CapVLANFilter)
	if err != nil {
		return h.fail(err)
	}
	return h.fail(s.tsn.SetVLANTag(tag))
}

// GetVLANTag returns the transmit tag, zero when none is set.
func (h *HAL) GetVLANTag(hd Handle) (types.VLANTag, error) {
	s, err := h.gated("get_vlan_tag", hd, types.CapVLANFilter)
	if err != nil {
		return types.VLANTag{}, h.fail(err)
	}
	return s.tsn.VLANTag(), nil
}

// ConfigurePriorityMapping maps a user priority to a traffic class.
func (h *HAL) ConfigurePriorityMapping(hd Handle, priority, trafficClass uint8) error {
	const op = "configure_priority_mapping"
	if err := tsn.ValidatePriority(op, priority); err != nil {
		return h.fail(err)
	}
	if err := tsn.ValidateTrafficClass(op, trafficClass); err != nil {
		return h.fail(err)
	}
	s, err := h.gated(op, hd, types.CapQoSPriority)
	if err != nil {
		return h.fail(err)
	}
	return h.fail(s.tsn.ConfigurePriorityMapping(priority, trafficClass))
}

// GetPriorityMapping returns the traffic class of every user priority.
func (h *HAL) GetPriorityMapping(hd Handle) ([types.MaxPriority + 1]uint8, error) {
	s, err := h.gated("get_priority_mapping", hd, types.CapQoSPriority)
	if err != nil {
		return [types.MaxPriority + 1]uint8{}, h.fail(err)
	}
	return s.tsn.PriorityMapping(), nil
}

// ConfigureCBS programs the credit-based shaper of traffic class tc.
func (h *HAL) ConfigureCBS(hd Handle, tc uint8, cfg *types.CBSConfig) error {
	const op = "configure_cbs"
	if err := tsn.ValidateCBS(op, tc, cfg); err != nil {
		return h.fail(err)
	}
	s, err := h.gated(op, hd, types.CapAVBShaping)
	if err != nil {
		return h.fail(err)
	}
	return h.fail(s.tsn.ConfigureCBS(tc, cfg))
}

// GetCBSConfig returns the credit-based shaper settings of tc.
func (h *HAL) GetCBSConfig(hd Handle, tc uint8) (types.CBSConfig, error) {
	const op = "get_cbs_config"
	if err := tsn.ValidateTrafficClass(op, tc); err != nil {
		return types.CBSConfig{}, h.fail(err)
	}
	s, err := h.gated(op, hd, types.CapAVBShaping)
	if err != nil {
		return types.CBSConfig{}, h.fail(err)
	}
	cfg, err := s.tsn.CBSConfig(tc)
	return cfg, h.fail(err)
}

// ConfigureBandwidthAllocation reserves percent of the link for tc.
func (h *HAL) ConfigureBandwidthAllocation(hd Handle, tc uint8, percent uint32) error {
	const op = "configure_bandwidth_allocation"
	if err := tsn.ValidateBandwidth(op, tc, percent); err != nil {
		return h.fail(err)
	}
	s, err := h.gated(op, hd, types.CapAdvancedQoS)
	if err != nil {
		return h.fail(err)
	}
	return h.fail(s.tsn.ConfigureBandwidthAllocation(tc, percent))
}

// SetRateLimit caps tc at mbps, which may not exceed the link maximum.
func (h *HAL) SetRateLimit(hd Handle, tc uint8, mbps uint32) error {
	const op = "set_rate_limit"
	s, err := h.lookup(op, hd)
	if err != nil {
		return h.fail(err)
	}
	if err := tsn.ValidateRateLimit(op, s.desc, tc, mbps); err != nil {
		return h.fail(err)
	}
	if err := h.gate(op, hd, s, types.CapAdvancedQoS); err != nil {
		return h.fail(err)
	}
	return h.fail(s.tsn.SetRateLimit(tc, mbps))
}

