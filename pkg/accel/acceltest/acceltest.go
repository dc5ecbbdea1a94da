// Package acceltest provides a recording Accelerator for tests.
package acceltest

import (
	"sync"

	"github.com/Nativu5/ethernet-hal/pkg/accel"
)

// Recorder is an in-memory Accelerator. Each Status field, when nonzero, is
// returned by the matching call instead of StatusOK.
type Recorder struct {
	AttachStatus accel.Status
	TASStatus    accel.Status
	FPStatus     accel.Status
	XmitStatus   accel.Status

	mu       sync.Mutex
	attached int
	detached int
	tas      []accel.TASConfig
	fp       []accel.FPConfig
	packets  []accel.Packet
}

var _ accel.Accelerator = (*Recorder)(nil)

type token struct{ vendor, device uint16 }

func (r *Recorder) Attach(ref *accel.DeviceRef) accel.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AttachStatus != accel.StatusOK {
		return r.AttachStatus
	}
	ref.Handle = &token{ref.VendorID, ref.DeviceID}
	r.attached++
	return accel.StatusOK
}

func (r *Recorder) Detach(ref *accel.DeviceRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref.Handle = nil
	r.detached++
}

func (r *Recorder) SetupTimeAwareShaper(_ *accel.DeviceRef, cfg *accel.TASConfig) accel.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.TASStatus != accel.StatusOK {
		return r.TASStatus
	}
	r.tas = append(r.tas, *cfg)
	return accel.StatusOK
}

func (r *Recorder) SetupFramePreemption(_ *accel.DeviceRef, cfg *accel.FPConfig) accel.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FPStatus != accel.StatusOK {
		return r.FPStatus
	}
	r.fp = append(r.fp, *cfg)
	return accel.StatusOK
}

func (r *Recorder) XmitTimedPacket(_ *accel.DeviceRef, pkt *accel.Packet) accel.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.XmitStatus != accel.StatusOK {
		return r.XmitStatus
	}
	p := *pkt
	p.Data = append([]byte(nil), pkt.Data...)
	r.packets = append(r.packets, p)
	return accel.StatusOK
}

// Attached returns how many successful Attach calls were made.
func (r *Recorder) Attached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached
}

// Detached returns how many Detach calls were made.
func (r *Recorder) Detached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached
}

// TAS returns every accepted gate schedule in call order.
func (r *Recorder) TAS() []accel.TASConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]accel.TASConfig(nil), r.tas...)
}

// FP returns every accepted preemption setup in call order.
func (r *Recorder) FP() []accel.FPConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]accel.FPConfig(nil), r.fp...)
}

// Packets returns every accepted timed packet in call order.
func (r *Recorder) Packets() []accel.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]accel.Packet(nil), r.packets...)
}
