// Package accel defines the contract of the external register-access
// library that programs TSN hardware (gate control lists, preemption, launch
// time). The HAL consumes it; it does not implement it.
package accel

import (
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// Status is the accelerator's return code. Zero means success.
type Status int

// StatusOK is the success status.
const StatusOK Status = 0

// DeviceRef identifies one adapter to the accelerator.
type DeviceRef struct {
	VendorID uint16
	DeviceID uint16
	// Platform is the backend context the adapter was located with.
	Platform types.PlatformContext
	// Handle is owned by the accelerator; it is set by Attach.
	Handle any
}

// Time is a (seconds, nanoseconds) pair as the accelerator expects it.
type Time struct {
	Seconds     uint64
	Nanoseconds uint32
}

// Gate is one gate control list entry.
type Gate struct {
	State      uint8
	DurationNs uint32
}

// TASConfig is the accelerator form of a gate schedule.
type TASConfig struct {
	BaseTime  Time
	CycleTime Time
	Gates     []Gate
}

// FPConfig is the accelerator form of a preemption setup.
type FPConfig struct {
	PreemptableQueues uint8
	MinFragmentSize   uint32
	VerifyDisable     bool
	VerifyTimeMs      uint32
}

// Packet is a frame queued for launch-time transmission.
type Packet struct {
	Data       []byte
	LaunchTime Time
}

// Accelerator programs TSN registers on attached adapters.
type Accelerator interface {
	// Attach binds ref to the hardware and fills ref.Handle.
	Attach(ref *DeviceRef) Status
	// Detach releases what Attach acquired.
	Detach(ref *DeviceRef)
	SetupTimeAwareShaper(ref *DeviceRef, cfg *TASConfig) Status
	SetupFramePreemption(ref *DeviceRef, cfg *FPConfig) Status
	XmitTimedPacket(ref *DeviceRef, pkt *Packet) Status
}

// SplitNanos converts a nanosecond count to a Time.
func SplitNanos(ns uint64) Time {
	return Time{
		Seconds:     ns / types.NanosPerSecond,
		Nanoseconds: uint32(ns % types.NanosPerSecond),
	}
}

// TranslateTAS converts a HAL gate schedule to the accelerator form.
func TranslateTAS(cfg *types.TASConfig) *TASConfig {
	out := &TASConfig{
		BaseTime:  SplitNanos(cfg.BaseTimeNs),
		CycleTime: SplitNanos(cfg.CycleTimeNs),
		Gates:     make([]Gate, len(cfg.GateControlList)),
	}
	for i, e := range cfg.GateControlList {
		out.Gates[i] = Gate{State: e.GateState, DurationNs: e.IntervalNs}
	}
	return out
}

// TranslateFP converts a HAL preemption setup to the accelerator form. The
// minimum fragment size is (addFragSize+1)*64 octets per 802.3br.
func TranslateFP(cfg *types.FramePreemptionConfig) *FPConfig {
	return &FPConfig{
		PreemptableQueues: cfg.PreemptibleQueues,
		MinFragmentSize:   (cfg.AdditionalFragmentSize + 1) * 64,
		VerifyDisable:     cfg.VerifyDisable,
		VerifyTimeMs:      cfg.VerifyTimeMs,
	}
}
