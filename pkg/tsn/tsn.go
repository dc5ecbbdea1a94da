// Package tsn configures Time-Sensitive Networking features of one adapter:
// Time-Aware Shaper, Frame Preemption, credit-based shaping, VLAN and QoS.
//
// A Device validates its arguments and routes each request to the path the
// adapter family supports: the external accelerator for TAS, FP and launch
// time on I225/I226, a software gate schedule for TAS elsewhere or when no
// accelerator is attached, and the
// shadow register file for VLAN and QoS. Capability gating and handle state
// are the caller's job.
package tsn

import (
	log "github.com/sirupsen/logrus"

	"github.com/Nativu5/ethernet-hal/pkg/accel"
	"github.com/Nativu5/ethernet-hal/pkg/regmap"
	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// SendFunc transmits one complete Ethernet frame immediately.
type SendFunc func(frame []byte) error

// Device is the TSN state of one adapter. It is not safe for concurrent use.
type Device struct {
	desc types.DeviceDescriptor
	regs *regmap.File

	acc  accel.Accelerator
	ref  *accel.DeviceRef
	send SendFunc

	tas   types.TASStatus
	fp    types.FramePreemptionStatus
	sched *Schedule
}

// NewDevice returns an unbound Device for desc.
func NewDevice(desc types.DeviceDescriptor) *Device {
	return &Device{
		desc: desc,
		regs: regmap.New(desc.PCIID()),
		tas:  types.TASStatus{Mode: types.ShaperNone},
		fp:   types.FramePreemptionStatus{Mode: types.ShaperNone},
	}
}

// Bind connects the device to an attached accelerator reference (acc and ref
// may be nil) and to an immediate transmit path (send may be nil).
func (d *Device) Bind(acc accel.Accelerator, ref *accel.DeviceRef, send SendFunc) {
	d.acc = acc
	d.ref = ref
	d.send = send
}

// Unbind drops the accelerator and transmit path. Register shadows and TSN
// status survive so they can still be read back.
func (d *Device) Unbind() {
	d.acc = nil
	d.ref = nil
	d.send = nil
	d.sched = nil
}

// Registers exposes the shadow register file.
func (d *Device) Registers() *regmap.File { return d.regs }

func (d *Device) accelerated() bool {
	return d.acc != nil && d.ref != nil
}

func hardwareTAS(f types.Family) bool {
	return f == types.FamilyI225 || f == types.FamilyI226
}

// ───────────────────────────────────────────
//  Time-Aware Shaper
// ───────────────────────────────────────────

func (d *Device) SetupTimeAwareShaper(cfg *types.TASConfig) error {
	const op = "setup_time_aware_shaper"
	if err := ValidateTAS(op, cfg); err != nil {
		return err
	}
	applied := copyTAS(cfg)

	if !hardwareTAS(d.desc.Family) || !d.accelerated() {
		if hardwareTAS(d.desc.Family) {
			log.Warnf("tsn: %s: no accelerator attached, falling back to software gate schedule", d.desc.Name)
		}
		d.sched = NewSchedule(applied)
		d.tas = types.TASStatus{Enabled: true, Mode: types.ShaperSoftware, Config: applied}
		log.Infof("tsn: %s: software gate schedule, cycle %d ns, %d entries",
			d.desc.Name, applied.CycleTimeNs, len(applied.GateControlList))
		return nil
	}

	if st := d.acc.SetupTimeAwareShaper(d.ref, accel.TranslateTAS(cfg)); st != accel.StatusOK {
		return result.New(result.Hardware, op, "accelerator returned status %d", st)
	}
	d.sched = nil
	d.tas = types.TASStatus{Enabled: true, Mode: types.ShaperHardware, Config: applied}
	log.Infof("tsn: %s: TAS programmed, cycle %d ns, %d entries",
		d.desc.Name, applied.CycleTimeNs, len(applied.GateControlList))
	return nil
}

// TASStatus returns the last applied TAS state, zero when the adapter has
// no TAS capability.
func (d *Device) TASStatus() types.TASStatus {
	if !d.desc.HasCapability(types.CapTSNTAS) {
		return types.TASStatus{Mode: types.ShaperNone}
	}
	st := d.tas
	st.Config = copyTAS(&d.tas.Config)
	return st
}

// GateStateAt evaluates the software schedule at ns. ok is false when no
// software schedule is active.
func (d *Device) GateStateAt(ns uint64) (state uint8, ok bool) {
	if d.sched == nil {
		return AllGatesOpen, false
	}
	return d.sched.GateStateAt(ns), true
}

func copyTAS(cfg *types.TASConfig) types.TASConfig {
	out := *cfg
	if cfg.GateControlList != nil {
		out.GateControlList = append([]types.GateControlEntry(nil), cfg.GateControlList...)
	}
	return out
}

// ───────────────────────────────────────────
//  Frame Preemption
// ───────────────────────────────────────────

func (d *Device) SetupFramePreemption(cfg *types.FramePreemptionConfig) error {
	const op = "setup_frame_preemption"
	if err := ValidateFramePreemption(op, cfg); err != nil {
		return err
	}
	if d.desc.Family != types.FamilyI226 {
		return result.New(result.NotSupported, op, "%s has no frame preemption hardware", d.desc.Name)
	}
	if !d.accelerated() {
		return result.New(result.DeviceBusy, op, "%s has no accelerator attached", d.desc.Name)
	}
	if st := d.acc.SetupFramePreemption(d.ref, accel.TranslateFP(cfg)); st != accel.StatusOK {
		return result.New(result.Hardware, op, "accelerator returned status %d", st)
	}
	d.fp = types.FramePreemptionStatus{Enabled: true, Mode: types.ShaperHardware, Config: *cfg}
	log.Infof("tsn: %s: frame preemption on queues 0x%02x", d.desc.Name, cfg.PreemptibleQueues)
	return nil
}

// FramePreemptionStatus returns the last applied FP state, zero when the
// adapter has no FP capability.
func (d *Device) FramePreemptionStatus() types.FramePreemptionStatus {
	if !d.desc.HasCapability(types.CapTSNFP) {
		return types.FramePreemptionStatus{Mode: types.ShaperNone}
	}
	return d.fp
}

// ───────────────────────────────────────────
//  Timed transmit
// ───────────────────────────────────────────

// XmitTimedPacket queues frame for launch at launch. Adapters without
// enhanced timestamping send it immediately instead.
func (d *Device) XmitTimedPacket(frame []byte, launch types.Timestamp) error {
	const op = "xmit_timed_packet"
	if err := ValidatePacket(op, frame); err != nil {
		return err
	}

	if d.desc.HasCapability(types.CapEnhancedTS) {
		if !d.accelerated() {
			return result.New(result.DeviceBusy, op, "%s has no accelerator attached", d.desc.Name)
		}
		pkt := &accel.Packet{
			Data:       frame,
			LaunchTime: accel.Time{Seconds: launch.Seconds, Nanoseconds: launch.Nanoseconds},
		}
		if st := d.acc.XmitTimedPacket(d.ref, pkt); st != accel.StatusOK {
			return result.New(result.Hardware, op, "accelerator returned status %d", st)
		}
		return nil
	}

	log.Debugf("tsn: %s: no launch-time support, sending %d bytes now", d.desc.Name, len(frame))
	if d.send == nil {
		log.Debugf("tsn: %s: no transmit path, frame accepted and dropped", d.desc.Name)
		return nil
	}
	return result.WithOp(op, d.send(frame))
}

// ───────────────────────────────────────────
//  VLAN and QoS
// ───────────────────────────────────────────

func (d *Device) ConfigureVLANFilter(vlanID uint16, enable bool) error {
	if err := ValidateVLANID("configure_vlan_filter", vlanID); err != nil {
		return err
	}
	d.regs.SetVLANFilter(vlanID, enable)
	return nil
}

// VLANFilter reports whether vlanID passes the filter.
func (d *Device) VLANFilter(vlanID uint16) bool {
	return vlanID <= types.MaxVLANID && d.regs.VLANFilter(vlanID)
}

func (d *Device) SetVLANTag(tag *types.VLANTag) error {
	if err := ValidateVLANTag("set_vlan_tag", tag); err != nil {
		return err
	}
	d.regs.SetVLANTag(*tag)
	return nil
}

// VLANTag returns the configured insertion tag, or the zero tag.
func (d *Device) VLANTag() types.VLANTag {
	tag, _ := d.regs.VLANTag()
	return tag
}

func (d *Device) ConfigurePriorityMapping(priority, trafficClass uint8) error {
	const op = "configure_priority_mapping"
	if err := ValidatePriority(op, priority); err != nil {
		return err
	}
	if err := ValidateTrafficClass(op, trafficClass); err != nil {
		return err
	}
	d.regs.SetPriorityMap(priority, trafficClass)
	return nil
}

// PriorityMapping returns the traffic class of each priority.
func (d *Device) PriorityMapping() [types.MaxPriority + 1]uint8 {
	return d.regs.PriorityMap()
}

func (d *Device) ConfigureCBS(tc uint8, cfg *types.CBSConfig) error {
	if err := ValidateCBS("configure_cbs", tc, cfg); err != nil {
		return err
	}
	d.regs.SetCBS(tc, *cfg)
	return nil
}

func (d *Device) CBSConfig(tc uint8) (types.CBSConfig, error) {
	if err := ValidateTrafficClass("get_cbs_config", tc); err != nil {
		return types.CBSConfig{}, err
	}
	return d.regs.CBS(tc), nil
}

func (d *Device) ConfigureBandwidthAllocation(tc uint8, percent uint32) error {
	if err := ValidateBandwidth("configure_bandwidth_allocation", tc, percent); err != nil {
		return err
	}
	d.regs.SetBandwidth(tc, percent)
	return nil
}

func (d *Device) SetRateLimit(tc uint8, mbps uint32) error {
	if err := ValidateRateLimit("set_rate_limit", d.desc, tc, mbps); err != nil {
		return err
	}
	d.regs.SetRateLimit(tc, mbps)
	return nil
}
