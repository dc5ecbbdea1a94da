// Package regmap is the register path for VLAN, QoS and CBS settings. It
// keeps a per-adapter shadow of the affected registers: every write is logged
// with its address and can be read back. Values are not pushed to the
// device; that is the job of the external register-access library.
package regmap

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// Register offsets.
const (
	RegVET      uint32 = 0x00000038 // VLAN Ethertype
	RegVTE      uint32 = 0x00000B00 // VLAN tag insertion
	RegRQTC     uint32 = 0x00002300 // RX priority to traffic class
	RegRQTSS    uint32 = 0x00002A00 // TX bandwidth shares, one word per TC
	RegTQAVBase uint32 = 0x00003000 // CBS block, one per TC
	RegTQTC     uint32 = 0x00003590 // TX priority to traffic class
	RegTQRLBase uint32 = 0x00003700 // TX rate limit in Mbps, one word per TC
	RegVFTABase uint32 = 0x00005600 // VLAN filter table array, 128 words
)

// CBS block layout.
const (
	tqavStride   = 0x40
	tqavCtrl     = 0x00
	tqavIdle     = 0x04
	tqavSend     = 0x08
	tqavHiCredit = 0x0C
	tqavLoCredit = 0x10

	tqavEnable uint32 = 1 << 0
)

const (
	vlanEthertype uint32 = 0x8100
	vteEnable     uint32 = 1 << 31
	vteDEI        uint32 = 1 << 12
)

// File is a shadow register file. The zero value is not usable; call New.
type File struct {
	name   string
	regs   map[uint32]uint32
	writes int
}

// New returns an empty register file labelled name (used in log lines).
func New(name string) *File {
	return &File{name: name, regs: make(map[uint32]uint32)}
}

// Read returns the shadowed value of addr (zero if never written).
func (f *File) Read(addr uint32) uint32 {
	return f.regs[addr]
}

// Write stores val at addr.
func (f *File) Write(addr, val uint32) {
	log.Debugf("%s: reg[0x%08X] <- 0x%08X", f.name, addr, val)
	f.regs[addr] = val
	f.writes++
}

// Writes returns how many register writes have been made.
func (f *File) Writes() int {
	return f.writes
}

// Addresses returns the written addresses in ascending order.
func (f *File) Addresses() []uint32 {
	addrs := make([]uint32, 0, len(f.regs))
	for a := range f.regs {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// ───────────────────────────────────────────
//  VLAN
// ───────────────────────────────────────────

// VFTALocation returns the VFTA word address and bit for a VLAN ID.
func VFTALocation(vlanID uint16) (addr uint32, bit uint32) {
	return RegVFTABase + uint32(vlanID/32)*4, uint32(vlanID % 32)
}

// SetVLANFilter sets or clears the VFTA bit of vlanID.
func (f *File) SetVLANFilter(vlanID uint16, enable bool) {
	addr, bit := VFTALocation(vlanID)
	v := f.Read(addr)
	if enable {
		v |= 1 << bit
	} else {
		v &^= 1 << bit
	}
	f.Write(addr, v)
}

// VLANFilter reports whether vlanID is accepted by the filter table.
func (f *File) VLANFilter(vlanID uint16) bool {
	addr, bit := VFTALocation(vlanID)
	return f.Read(addr)&(1<<bit) != 0
}

// SetVLANTag programs the Ethertype and the tag inserted on transmit.
func (f *File) SetVLANTag(tag types.VLANTag) {
	f.Write(RegVET, vlanEthertype)
	tci := uint32(tag.Priority)<<13 | uint32(tag.ID&0x0FFF)
	if tag.DEI {
		tci |= vteDEI
	}
	f.Write(RegVTE, vteEnable|tci)
}

// VLANTag returns the programmed tag; ok is false if none was set.
func (f *File) VLANTag() (tag types.VLANTag, ok bool) {
	v := f.Read(RegVTE)
	if v&vteEnable == 0 {
		return types.VLANTag{}, false
	}
	return types.VLANTag{
		ID:       uint16(v & 0x0FFF),
		Priority: uint8(v>>13) & 0x7,
		DEI:      v&vteDEI != 0,
	}, true
}

// ───────────────────────────────────────────
//  Priority mapping
// ───────────────────────────────────────────

// SetPriorityMap maps an 802.1p priority to a traffic class in both
// directions. Each map register holds eight 3-bit fields.
func (f *File) SetPriorityMap(priority, trafficClass uint8) {
	shift := uint32(priority) * 3
	for _, addr := range []uint32{RegRQTC, RegTQTC} {
		v := f.Read(addr)
		v &^= 0x7 << shift
		v |= uint32(trafficClass&0x7) << shift
		f.Write(addr, v)
	}
}

// PriorityMap returns the traffic class of every priority.
func (f *File) PriorityMap() [types.MaxPriority + 1]uint8 {
	var out [types.MaxPriority + 1]uint8
	v := f.Read(RegTQTC)
	for p := range out {
		out[p] = uint8(v>>(uint32(p)*3)) & 0x7
	}
	return out
}

// ───────────────────────────────────────────
//  Credit-based shaper
// ───────────────────────────────────────────

func tqav(tc uint8, off uint32) uint32 {
	return RegTQAVBase + uint32(tc)*tqavStride + off
}

// SetCBS programs the shaper block of a traffic class.
func (f *File) SetCBS(tc uint8, cfg types.CBSConfig) {
	ctrl := uint32(0)
	if cfg.Enabled {
		ctrl = tqavEnable
	}
	f.Write(tqav(tc, tqavIdle), uint32(cfg.IdleSlope))
	f.Write(tqav(tc, tqavSend), uint32(cfg.SendSlope))
	f.Write(tqav(tc, tqavHiCredit), uint32(cfg.HiCredit))
	f.Write(tqav(tc, tqavLoCredit), uint32(cfg.LoCredit))
	f.Write(tqav(tc, tqavCtrl), ctrl)
}

// CBS reads back the shaper block of a traffic class.
func (f *File) CBS(tc uint8) types.CBSConfig {
	return types.CBSConfig{
		Enabled:   f.Read(tqav(tc, tqavCtrl))&tqavEnable != 0,
		IdleSlope: int32(f.Read(tqav(tc, tqavIdle))),
		SendSlope: int32(f.Read(tqav(tc, tqavSend))),
		HiCredit:  int32(f.Read(tqav(tc, tqavHiCredit))),
		LoCredit:  int32(f.Read(tqav(tc, tqavLoCredit))),
	}
}

// ───────────────────────────────────────────
//  Bandwidth and rate limits
// ───────────────────────────────────────────

// SetBandwidth stores the bandwidth share (percent) of a traffic class.
func (f *File) SetBandwidth(tc uint8, percent uint32) {
	f.Write(RegRQTSS+uint32(tc)*4, percent)
}

// Bandwidth returns the bandwidth share of a traffic class.
func (f *File) Bandwidth(tc uint8) uint32 {
	return f.Read(RegRQTSS + uint32(tc)*4)
}

// SetRateLimit stores the rate limit (Mbps, 0 = unlimited) of a traffic class.
func (f *File) SetRateLimit(tc uint8, mbps uint32) {
	f.Write(RegTQRLBase+uint32(tc)*4, mbps)
}

// RateLimit returns the rate limit of a traffic class.
func (f *File) RateLimit(tc uint8) uint32 {
	return f.Read(RegTQRLBase + uint32(tc)*4)
}
