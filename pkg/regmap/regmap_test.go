package regmap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Nativu5/ethernet-hal/pkg/types"
)

func TestVFTALocation(t *testing.T) {
	tests := []struct {
		vid      uint16
		wantAddr uint32
		wantBit  uint32
	}{
		{0, 0x5600, 0},
		{31, 0x5600, 31},
		{32, 0x5604, 0},
		{100, 0x560C, 4},
		{4095, 0x57FC, 31},
	}
	for _, tc := range tests {
		addr, bit := VFTALocation(tc.vid)
		assert.Equal(t, tc.wantAddr, addr, "vid %d", tc.vid)
		assert.Equal(t, tc.wantBit, bit, "vid %d", tc.vid)
	}
}

func TestVLANFilter(t *testing.T) {
	f := New("test")
	f.SetVLANFilter(100, true)
	f.SetVLANFilter(101, true)
	assert.True(t, f.VLANFilter(100))
	assert.True(t, f.VLANFilter(101))
	assert.False(t, f.VLANFilter(102))

	f.SetVLANFilter(100, false)
	assert.False(t, f.VLANFilter(100))
	assert.True(t, f.VLANFilter(101), "neighbouring bit must survive")
	assert.Equal(t, 3, f.Writes())
}

func TestVLANTagRoundTrip(t *testing.T) {
	f := New("test")
	_, ok := f.VLANTag()
	assert.False(t, ok)

	tag := types.VLANTag{ID: 4095, Priority: 7, DEI: true}
	f.SetVLANTag(tag)
	got, ok := f.VLANTag()
	assert.True(t, ok)
	assert.Equal(t, tag, got)
	assert.Equal(t, uint32(0x8100), f.Read(RegVET))
}

func TestPriorityMap(t *testing.T) {
	f := New("test")
	f.SetPriorityMap(3, 2)
	f.SetPriorityMap(7, 7)
	f.SetPriorityMap(3, 5)

	m := f.PriorityMap()
	assert.Equal(t, uint8(5), m[3])
	assert.Equal(t, uint8(7), m[7])
	assert.Equal(t, uint8(0), m[0])
	assert.Equal(t, f.Read(RegRQTC), f.Read(RegTQTC))
}

func TestCBSRoundTrip(t *testing.T) {
	f := New("test")
	cfg := types.CBSConfig{Enabled: true, SendSlope: -900000, IdleSlope: 100000, HiCredit: 5000, LoCredit: -5000}
	f.SetCBS(1, cfg)

	assert.Equal(t, cfg, f.CBS(1))
	assert.Equal(t, types.CBSConfig{}, f.CBS(2))
	assert.Equal(t, uint32(1), f.Read(RegTQAVBase+0x40))
}

func TestBandwidthAndRateLimit(t *testing.T) {
	f := New("test")
	f.SetBandwidth(4, 60)
	f.SetRateLimit(4, 250)
	assert.Equal(t, uint32(60), f.Bandwidth(4))
	assert.Equal(t, uint32(250), f.RateLimit(4))
	assert.Equal(t, []uint32{0x2A10, 0x3710}, f.Addresses())
}
