package tsn

import "github.com/Nativu5/ethernet-hal/pkg/types"

// AllGatesOpen is the gate state outside an active schedule.
const AllGatesOpen uint8 = 0xFF

// Schedule is a gate control list evaluated in software. It is a pure
// function of time and owns no goroutines or timers.
type Schedule struct {
	base    uint64
	cycle   uint64
	entries []types.GateControlEntry
}

// NewSchedule copies cfg, which must have passed ValidateTAS.
func NewSchedule(cfg types.TASConfig) *Schedule {
	return &Schedule{
		base:    cfg.BaseTimeNs,
		cycle:   cfg.CycleTimeNs,
		entries: append([]types.GateControlEntry(nil), cfg.GateControlList...),
	}
}

// GateStateAt returns the open-queue mask at ns. Before the base time every
// gate is open. If the list is shorter than the cycle, the last entry holds
// until the cycle restarts.
func (s *Schedule) GateStateAt(ns uint64) uint8 {
	if ns < s.base || s.cycle == 0 || len(s.entries) == 0 {
		return AllGatesOpen
	}
	offset := (ns - s.base) % s.cycle

	var end uint64
	for _, e := range s.entries {
		end += uint64(e.IntervalNs)
		if offset < end {
			return e.GateState
		}
	}
	return s.entries[len(s.entries)-1].GateState
}

// CycleStart returns the start of the cycle containing ns, or the base time
// if ns precedes it.
func (s *Schedule) CycleStart(ns uint64) uint64 {
	if ns < s.base || s.cycle == 0 {
		return s.base
	}
	return ns - (ns-s.base)%s.cycle
}
