package hal

import (
	"fmt"

	"github.com/Nativu5/ethernet-hal/pkg/accel"
	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/tsn"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// State is the lifecycle position of a device handle.
type State int

const (
	StateCreated State = iota
	StateOpened
	StateClosed
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	case StateClosed:
		return "closed"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handle identifies a device slot. A handle goes stale when its slot is
// destroyed, even if the slot is later reused. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return "dev#none"
	}
	return fmt.Sprintf("dev#%d.%d", h.index, h.gen)
}

// slot is the state owned by one live handle.
type slot struct {
	gen   uint32
	state State
	refs  int32

	desc  types.DeviceDescriptor
	iface types.InterfaceInfo
	ctx   types.PlatformContext
	ref   *accel.DeviceRef
	tsn   *tsn.Device
}

// lookup resolves hd to its live slot.
func (h *HAL) lookup(op string, hd Handle) (*slot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if hd.IsZero() || int(hd.index) >= len(h.slots) {
		return nil, result.New(result.InvalidParameter, op, "invalid handle %s", hd)
	}
	s := h.slots[hd.index]
	if s == nil || s.gen != hd.gen || s.state == StateDestroyed {
		return nil, result.New(result.InvalidParameter, op, "stale handle %s", hd)
	}
	return s, nil
}

// alloc stores s in a free slot and returns its handle.
func (h *HAL) alloc(s *slot) Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.free); n > 0 {
		idx := h.free[n-1]
		h.free = h.free[:n-1]
		s.gen = h.gens[idx] + 1
		h.gens[idx] = s.gen
		h.slots[idx] = s
		return Handle{index: idx, gen: s.gen}
	}
	idx := uint32(len(h.slots))
	s.gen = 1
	h.slots = append(h.slots, s)
	h.gens = append(h.gens, s.gen)
	return Handle{index: idx, gen: s.gen}
}

// destroy retires the slot behind hd. Later lookups of hd fail.
func (h *HAL) destroy(hd Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s := h.slots[hd.index]; s != nil && s.gen == hd.gen {
		s.state = StateDestroyed
		h.slots[hd.index] = nil
		h.free = append(h.free, hd.index)
	}
}

// Len returns the number of live handles.
func (h *HAL) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.slots) - len(h.free)
}
