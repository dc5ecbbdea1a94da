package platform

import "github.com/Nativu5/ethernet-hal/pkg/types"

// counterToNanos converts a tick count at freq Hz to nanoseconds without
// overflowing the intermediate product.
func counterToNanos(counter, freq int64) uint64 {
	if counter <= 0 || freq <= 0 {
		return 0
	}
	return ticksToNanos(uint64(counter), uint64(freq))
}

func ticksToNanos(ticks, freq uint64) uint64 {
	if freq == 0 {
		return 0
	}
	return ticks/freq*types.NanosPerSecond + (ticks%freq)*types.NanosPerSecond/freq
}
