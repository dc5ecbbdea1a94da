// Package registry holds the static table of supported adapters and their
// capability masks. The built-in table is immutable after package init and
// safe for unsynchronized concurrent reads.
package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// Supported Intel device IDs.
const (
	DeviceI210Copper uint16 = 0x1533
	DeviceI210T1     uint16 = 0x1536
	DeviceI210IS     uint16 = 0x1537
	DeviceI219LM     uint16 = 0x15B7
	DeviceI219V      uint16 = 0x15B8
	DeviceI219V2     uint16 = 0x15D6
	DeviceI219LM2    uint16 = 0x15D7
	DeviceI219V3     uint16 = 0x15D8
	DeviceI219LMG22  uint16 = 0x0DC7
	DeviceI225LM     uint16 = 0x15F2
	DeviceI225V      uint16 = 0x15F3
	DeviceI226LM     uint16 = 0x125B
	DeviceI226V      uint16 = 0x125C
)

// Family capability masks.
const (
	capsI210 = types.CapBasic1588 | types.CapMMIO | types.CapDMA | types.CapNativeOS |
		types.CapVLANFilter | types.CapQoSPriority | types.CapAVBShaping

	capsI219 = types.CapBasic1588 | types.CapMDIO | types.CapNativeOS | types.CapVLANFilter

	capsI225 = types.CapBasic1588 | types.CapEnhancedTS | types.CapTSNTAS | types.CapTSNFP |
		types.CapPCIePTM | types.Cap2_5G | types.CapMMIO | types.CapDMA | types.CapNativeOS |
		types.CapVLANFilter | types.CapQoSPriority | types.CapAVBShaping | types.CapAdvancedQoS

	capsI226 = capsI225
)

func entry(id uint16, family types.Family, caps types.Capability, name, desc string) types.DeviceDescriptor {
	return types.DeviceDescriptor{
		VendorID:     types.IntelVendorID,
		DeviceID:     id,
		Family:       family,
		Capabilities: caps,
		Name:         name,
		Description:  desc,
	}
}

var builtin = mustNew(
	entry(DeviceI210Copper, types.FamilyI210, capsI210, "I210", "Intel I210 Gigabit Network Connection"),
	entry(DeviceI210T1, types.FamilyI210, capsI210, "I210-T1", "Intel I210-T1 Gigabit Network Connection"),
	entry(DeviceI210IS, types.FamilyI210, capsI210, "I210-IS", "Intel I210-IS Gigabit Network Connection"),

	entry(DeviceI219LM, types.FamilyI219, capsI219, "I219-LM", "Intel I219-LM Gigabit Network Connection"),
	entry(DeviceI219V, types.FamilyI219, capsI219, "I219-V", "Intel I219-V Gigabit Network Connection"),
	entry(DeviceI219V2, types.FamilyI219, capsI219, "I219-V", "Intel I219-V Gigabit Network Connection"),
	entry(DeviceI219LM2, types.FamilyI219, capsI219, "I219-LM", "Intel I219-LM Gigabit Network Connection"),
	entry(DeviceI219V3, types.FamilyI219, capsI219, "I219-V", "Intel I219-V Gigabit Network Connection"),
	entry(DeviceI219LMG22, types.FamilyI219, capsI219, "I219-LM", "Intel I219-LM Gigabit Network Connection (Gen 22)"),

	entry(DeviceI225LM, types.FamilyI225, capsI225, "I225-LM", "Intel I225-LM 2.5 Gigabit Network Connection"),
	entry(DeviceI225V, types.FamilyI225, capsI225, "I225-V", "Intel I225-V 2.5 Gigabit Network Connection"),

	entry(DeviceI226LM, types.FamilyI226, capsI226, "I226-LM", "Intel I226-LM 2.5 Gigabit Network Connection"),
	entry(DeviceI226V, types.FamilyI226, capsI226, "I226-V", "Intel I226-V 2.5 Gigabit Network Connection"),
)

// Registry is an immutable, ordered set of device descriptors keyed by device ID.
type Registry struct {
	entries []types.DeviceDescriptor
	index   map[uint16]int
}

// New builds a registry from entries, keeping their order. Device IDs must be
// unique and non-zero.
func New(entries ...types.DeviceDescriptor) (*Registry, error) {
	r := &Registry{
		entries: make([]types.DeviceDescriptor, 0, len(entries)),
		index:   make(map[uint16]int, len(entries)),
	}
	for _, e := range entries {
		if e.DeviceID == 0 {
			return nil, fmt.Errorf("device ID 0 is reserved")
		}
		if _, dup := r.index[e.DeviceID]; dup {
			return nil, fmt.Errorf("duplicate device ID 0x%04x", e.DeviceID)
		}
		r.index[e.DeviceID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

func mustNew(entries ...types.DeviceDescriptor) *Registry {
	r, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the built-in registry.
func Default() *Registry {
	return builtin
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id uint16) (types.DeviceDescriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return types.DeviceDescriptor{}, false
	}
	return r.entries[i], true
}

// ListSupported returns the supported device IDs in table order.
func (r *Registry) ListSupported() []uint16 {
	ids := make([]uint16, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.DeviceID
	}
	return ids
}

// All returns a copy of every descriptor in table order.
func (r *Registry) All() []types.DeviceDescriptor {
	out := make([]types.DeviceDescriptor, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Lookup looks id up in the built-in registry.
func Lookup(id uint16) (types.DeviceDescriptor, bool) {
	return builtin.Lookup(id)
}

// ListSupported lists the built-in device IDs.
func ListSupported() []uint16 {
	return builtin.ListSupported()
}

// ParseDeviceID parses a device ID given as "0x125b", "125b" (bare hex, as
// sysfs prints it after the prefix is stripped) or decimal "4699". A bare
// four-digit string is read as hex. Zero is rejected.
func ParseDeviceID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 16)
	case len(s) == 4:
		v, err = strconv.ParseUint(s, 16, 16)
	default:
		v, err = strconv.ParseUint(s, 10, 16)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid device ID %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("invalid device ID %q: zero is reserved", s)
	}
	return uint16(v), nil
}

// FormatDeviceID renders id as "0x125B".
func FormatDeviceID(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}
