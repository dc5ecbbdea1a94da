package accel

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Nativu5/ethernet-hal/pkg/types"
)

func TestSplitNanos(t *testing.T) {
	tests := []struct {
		ns   uint64
		want Time
	}{
		{0, Time{}},
		{999_999_999, Time{Nanoseconds: 999_999_999}},
		{1_000_000_000, Time{Seconds: 1}},
		{2_500_000_123, Time{Seconds: 2, Nanoseconds: 500_000_123}},
	}
	for _, tc := range tests {
		if got := SplitNanos(tc.ns); got != tc.want {
			t.Errorf("SplitNanos(%d) = %+v, want %+v", tc.ns, got, tc.want)
		}
	}
}

func TestTranslateTAS(t *testing.T) {
	cfg := &types.TASConfig{
		CycleTimeNs: 1_000_000,
		BaseTimeNs:  3_000_000_500,
		GateControlList: []types.GateControlEntry{
			{GateState: 0x01, IntervalNs: 300_000},
			{GateState: 0xFE, IntervalNs: 700_000},
		},
	}
	want := &TASConfig{
		BaseTime:  Time{Seconds: 3, Nanoseconds: 500},
		CycleTime: Time{Nanoseconds: 1_000_000},
		Gates: []Gate{
			{State: 0x01, DurationNs: 300_000},
			{State: 0xFE, DurationNs: 700_000},
		},
	}
	if diff := cmp.Diff(want, TranslateTAS(cfg)); diff != "" {
		t.Errorf("TranslateTAS mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateFP(t *testing.T) {
	got := TranslateFP(&types.FramePreemptionConfig{
		PreemptibleQueues:      0x0F,
		AdditionalFragmentSize: 3,
		VerifyTimeMs:           10,
	})
	want := &FPConfig{PreemptableQueues: 0x0F, MinFragmentSize: 256, VerifyTimeMs: 10}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TranslateFP mismatch (-want +got):\n%s", diff)
	}
}
