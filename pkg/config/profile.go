// Package config loads TSN profiles: YAML documents describing the VLAN,
// QoS and TSN settings of one adapter, applied through the HAL in one step.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Nativu5/ethernet-hal/pkg/hal"
	"github.com/Nativu5/ethernet-hal/pkg/registry"
	"github.com/Nativu5/ethernet-hal/pkg/tsn"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// Profile is the YAML form of a TSN setup. Every section is optional.
type Profile struct {
	// Device optionally pins the profile to a device ID ("0x125B").
	Device          string                       `yaml:"device,omitempty"`
	VLAN            *VLANSection                 `yaml:"vlan,omitempty"`
	PriorityMap     map[uint8]uint8              `yaml:"priorityMap,omitempty"`
	CBS             []CBSEntry                   `yaml:"cbs,omitempty"`
	Bandwidth       []BandwidthEntry             `yaml:"bandwidth,omitempty"`
	RateLimits      []RateLimitEntry             `yaml:"rateLimits,omitempty"`
	TAS             *types.TASConfig             `yaml:"tas,omitempty"`
	FramePreemption *types.FramePreemptionConfig `yaml:"framePreemption,omitempty"`
}

type VLANSection struct {
	Filters []uint16       `yaml:"filters,omitempty"`
	Tag     *types.VLANTag `yaml:"tag,omitempty"`
}

type CBSEntry struct {
	TrafficClass    uint8 `yaml:"trafficClass"`
	types.CBSConfig `yaml:",inline"`
}

type BandwidthEntry struct {
	TrafficClass uint8  `yaml:"trafficClass"`
	Percent      uint32 `yaml:"percent"`
}

type RateLimitEntry struct {
	TrafficClass uint8  `yaml:"trafficClass"`
	Mbps         uint32 `yaml:"mbps"`
}

// Parse decodes a single profile document. Unknown keys are rejected.
func Parse(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty TSN profile")
		}
		return nil, fmt.Errorf("failed to parse TSN profile: %w", err)
	}
	return &p, nil
}

// Load reads and parses the profile at path.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TSN profile %s: %w", path, err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Marshal renders p as YAML.
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate checks every section against desc without touching any device:
// argument ranges first, then that desc carries the needed capability.
func (p *Profile) Validate(desc types.DeviceDescriptor) error {
	var errs []error
	need := func(section string, c types.Capability) {
		if !desc.HasCapability(c) {
			errs = append(errs, fmt.Errorf("%s: %s lacks %s", section, desc.Name, c.Name()))
		}
	}

	if p.Device != "" {
		id, err := registry.ParseDeviceID(p.Device)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("device: %w", err))
		case id != desc.DeviceID:
			errs = append(errs, fmt.Errorf("device: profile is for %s, not %s (%s)",
				registry.FormatDeviceID(id), desc.Name, registry.FormatDeviceID(desc.DeviceID)))
		}
	}

	if p.VLAN != nil {
		for _, id := range p.VLAN.Filters {
			errs = append(errs, tsn.ValidateVLANID("vlan.filters", id))
		}
		if p.VLAN.Tag != nil {
			errs = append(errs, tsn.ValidateVLANTag("vlan.tag", p.VLAN.Tag))
		}
		need("vlan", types.CapVLANFilter)
	}
	if len(p.PriorityMap) > 0 {
		for prio, tc := range p.PriorityMap {
			errs = append(errs, tsn.ValidatePriority("priorityMap", prio), tsn.ValidateTrafficClass("priorityMap", tc))
		}
		need("priorityMap", types.CapQoSPriority)
	}
	if len(p.CBS) > 0 {
		for i := range p.CBS {
			errs = append(errs, tsn.ValidateCBS("cbs", p.CBS[i].TrafficClass, &p.CBS[i].CBSConfig))
		}
		need("cbs", types.CapAVBShaping)
	}
	if len(p.Bandwidth) > 0 {
		var total uint32
		for _, b := range p.Bandwidth {
			errs = append(errs, tsn.ValidateBandwidth("bandwidth", b.TrafficClass, b.Percent))
			total += b.Percent
		}
		if total > types.MaxBandwidthPercent {
			errs = append(errs, fmt.Errorf("bandwidth: shares add up to %d%%", total))
		}
		need("bandwidth", types.CapAdvancedQoS)
	}
	if len(p.RateLimits) > 0 {
		for _, r := range p.RateLimits {
			errs = append(errs, tsn.ValidateRateLimit("rateLimits", desc, r.TrafficClass, r.Mbps))
		}
		need("rateLimits", types.CapAdvancedQoS)
	}
	if p.TAS != nil {
		errs = append(errs, tsn.ValidateTAS("tas", p.TAS))
		need("tas", types.CapTSNTAS)
	}
	if p.FramePreemption != nil {
		errs = append(errs, tsn.ValidateFramePreemption("framePreemption", p.FramePreemption))
		need("framePreemption", types.CapTSNFP)
	}
	return errors.Join(errs...)
}

// Apply validates p against the device behind hd and then programs it
// section by section. Validation failures leave the device untouched; a
// device error stops at the failing section.
func (p *Profile) Apply(h *hal.HAL, hd hal.Handle) error {
	info, err := h.GetDeviceInfo(hd)
	if err != nil {
		return err
	}
	if err := p.Validate(info.Descriptor); err != nil {
		return fmt.Errorf("invalid TSN profile for %s: %w", info.Descriptor.Name, err)
	}

	step := func(section string, err error) error {
		if err != nil {
			return fmt.Errorf("apply %s: %w", section, err)
		}
		log.Infof("config: applied %s", section)
		return nil
	}

	if p.VLAN != nil {
		for _, id := range p.VLAN.Filters {
			if err := step(fmt.Sprintf("vlan filter %d", id), h.ConfigureVLANFilter(hd, id, true)); err != nil {
				return err
			}
		}
		if p.VLAN.Tag != nil {
			if err := step("vlan tag", h.SetVLANTag(hd, p.VLAN.Tag)); err != nil {
				return err
			}
		}
	}

	prios := make([]int, 0, len(p.PriorityMap))
	for prio := range p.PriorityMap {
		prios = append(prios, int(prio))
	}
	sort.Ints(prios)
	for _, prio := range prios {
		tc := p.PriorityMap[uint8(prio)]
		if err := step(fmt.Sprintf("priority %d -> tc %d", prio, tc), h.ConfigurePriorityMapping(hd, uint8(prio), tc)); err != nil {
			return err
		}
	}

	for i := range p.CBS {
		e := &p.CBS[i]
		if err := step(fmt.Sprintf("cbs tc %d", e.TrafficClass), h.ConfigureCBS(hd, e.TrafficClass, &e.CBSConfig)); err != nil {
			return err
		}
	}
	for _, b := range p.Bandwidth {
		if err := step(fmt.Sprintf("bandwidth tc %d", b.TrafficClass), h.ConfigureBandwidthAllocation(hd, b.TrafficClass, b.Percent)); err != nil {
			return err
		}
	}
	for _, r := range p.RateLimits {
		if err := step(fmt.Sprintf("rate limit tc %d", r.TrafficClass), h.SetRateLimit(hd, r.TrafficClass, r.Mbps)); err != nil {
			return err
		}
	}
	if p.TAS != nil {
		if err := step("tas", h.SetupTimeAwareShaper(hd, p.TAS)); err != nil {
			return err
		}
	}
	if p.FramePreemption != nil {
		if err := step("frame preemption", h.SetupFramePreemption(hd, p.FramePreemption)); err != nil {
			return err
		}
	}
	return nil
}
