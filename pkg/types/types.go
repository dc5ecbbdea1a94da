// Package types defines the shared data model for the Ethernet HAL: device
// descriptors, capability bits, timestamps, TSN configuration records and the
// per-platform adapter context.
package types

import (
	"fmt"
	"net"
	"strings"
)

// IntelVendorID is the PCI vendor ID of every supported adapter.
const IntelVendorID uint16 = 0x8086

// Family identifies an adapter generation.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyI210
	FamilyI219
	FamilyI225
	FamilyI226
)

// String returns the family name (e.g. "I225").
func (f Family) String() string {
	switch f {
	case FamilyI210:
		return "I210"
	case FamilyI219:
		return "I219"
	case FamilyI225:
		return "I225"
	case FamilyI226:
		return "I226"
	default:
		return "Unknown"
	}
}

// Capability is a bitmask of hardware features.
type Capability uint32

const (
	CapBasic1588   Capability = 1 << iota // basic IEEE 1588
	CapEnhancedTS                         // enhanced timestamping
	CapTSNTAS                             // TSN Time-Aware Shaper
	CapTSNFP                              // TSN Frame Preemption
	CapPCIePTM                            // PCIe Precision Time Measurement
	Cap2_5G                               // 2.5 Gbps link speed
	CapMMIO                               // memory-mapped I/O
	CapMDIO                               // MDIO PHY access
	CapDMA                                // direct memory access
	CapNativeOS                           // native OS integration
	CapVLANFilter                         // VLAN filtering and tagging
	CapQoSPriority                        // priority to traffic class mapping
	CapAVBShaping                         // credit-based shaper
	CapAdvancedQoS                        // bandwidth allocation and rate limiting
)

// AllCapabilities lists every known capability bit in bit order.
var AllCapabilities = []Capability{
	CapBasic1588, CapEnhancedTS, CapTSNTAS, CapTSNFP, CapPCIePTM, Cap2_5G, CapMMIO,
	CapMDIO, CapDMA, CapNativeOS, CapVLANFilter, CapQoSPriority, CapAVBShaping, CapAdvancedQoS,
}

var capabilityNames = map[Capability]string{
	CapBasic1588:   "Basic IEEE 1588",
	CapEnhancedTS:  "Enhanced Timestamping",
	CapTSNTAS:      "TSN Time Aware Shaping",
	CapTSNFP:       "TSN Frame Preemption",
	CapPCIePTM:     "PCIe Precision Time Measurement",
	Cap2_5G:        "2.5 Gbps Speed",
	CapMMIO:        "Memory-mapped I/O",
	CapMDIO:        "MDIO PHY Access",
	CapDMA:         "Direct Memory Access",
	CapNativeOS:    "Native OS Integration",
	CapVLANFilter:  "VLAN Filtering",
	CapQoSPriority: "QoS Priority Mapping",
	CapAVBShaping:  "AVB Credit-Based Shaping",
	CapAdvancedQoS: "Advanced QoS",
}

// Has reports whether every bit of want is set in c. The zero mask is never held.
func (c Capability) Has(want Capability) bool {
	return want != 0 && c&want == want
}

// Name returns the human-readable name of a single capability bit.
func (c Capability) Name() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "Unknown Capability"
}

// Names returns the names of all set bits, in bit order.
func (c Capability) Names() []string {
	var names []string
	for _, bit := range AllCapabilities {
		if c&bit != 0 {
			names = append(names, bit.Name())
		}
	}
	return names
}

// String renders the mask as hex, e.g. "0x00003fff".
func (c Capability) String() string {
	return fmt.Sprintf("0x%08x", uint32(c))
}

// DeviceDescriptor is the identity and feature set of one supported device ID.
type DeviceDescriptor struct {
	VendorID     uint16
	DeviceID     uint16
	Family       Family
	Capabilities Capability
	// Name is the short marketing name (e.g. "I226-LM").
	Name string
	// Description is the long name. The platform backend may replace it with
	// the OS-reported adapter description on open.
	Description string
}

// HasCapability reports whether the descriptor carries the given bit(s).
func (d DeviceDescriptor) HasCapability(c Capability) bool {
	return d.Capabilities.Has(c)
}

// PCIID returns the "vvvv:dddd" form used in logs and tables.
func (d DeviceDescriptor) PCIID() string {
	return fmt.Sprintf("%04x:%04x", d.VendorID, d.DeviceID)
}

// MaxLinkSpeedMbps is the nominal maximum speed of the device.
func (d DeviceDescriptor) MaxLinkSpeedMbps() uint32 {
	if d.HasCapability(Cap2_5G) {
		return 2500
	}
	return 1000
}

// InterfaceInfo describes the network interface bound to an opened adapter.
type InterfaceInfo struct {
	Name             string
	MAC              net.HardwareAddr
	SpeedMbps        uint32
	LinkUp           bool
	TimestampEnabled bool
}

// DeviceInfo is the resolved view of an opened (or probed) adapter.
type DeviceInfo struct {
	Descriptor DeviceDescriptor
	Interface  InterfaceInfo
	// Platform is nil until the adapter has been located.
	Platform PlatformContext
}

// CapabilityList renders the capability names of info as a comma-separated string.
func (info DeviceInfo) CapabilityList() string {
	return strings.Join(info.Descriptor.Capabilities.Names(), ", ")
}
