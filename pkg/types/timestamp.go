package types

import "fmt"

// NanosPerSecond is the number of nanoseconds in one second.
const NanosPerSecond = 1_000_000_000

// Timestamp is a PTP time value. Nanoseconds is always below NanosPerSecond;
// Fraction holds sub-nanosecond precision in units of 2^-32 ns.
type Timestamp struct {
	Seconds     uint64
	Nanoseconds uint32
	Fraction    uint32
}

// TimestampFromNanos splits a nanosecond count into seconds and nanoseconds.
func TimestampFromNanos(ns uint64) Timestamp {
	return Timestamp{
		Seconds:     ns / NanosPerSecond,
		Nanoseconds: uint32(ns % NanosPerSecond),
	}
}

// Nanos returns the timestamp as a nanosecond count, dropping the fraction.
// It wraps for times past year 2554.
func (t Timestamp) Nanos() uint64 {
	return t.Seconds*NanosPerSecond + uint64(t.Nanoseconds)
}

// Valid reports whether the nanosecond field is in range.
func (t Timestamp) Valid() bool {
	return t.Nanoseconds < NanosPerSecond
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to or after u.
func (t Timestamp) Compare(u Timestamp) int {
	switch {
	case t.Seconds != u.Seconds:
		if t.Seconds < u.Seconds {
			return -1
		}
		return 1
	case t.Nanoseconds != u.Nanoseconds:
		if t.Nanoseconds < u.Nanoseconds {
			return -1
		}
		return 1
	case t.Fraction != u.Fraction:
		if t.Fraction < u.Fraction {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether t is strictly earlier than u.
func (t Timestamp) Before(u Timestamp) bool {
	return t.Compare(u) < 0
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%09d", t.Seconds, t.Nanoseconds)
}
