package tsn

import (
	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// Argument checks. Each returns an InvalidParameter *result.Error tagged with
// op, so callers can run them before any capability or state check.

func ValidateTAS(op string, cfg *types.TASConfig) error {
	if cfg == nil {
		return result.New(result.InvalidParameter, op, "nil TAS config")
	}
	if cfg.CycleTimeNs == 0 {
		return result.New(result.InvalidParameter, op, "cycle time must be nonzero")
	}
	n := len(cfg.GateControlList)
	if n == 0 || n > types.MaxGateControlEntries {
		return result.New(result.InvalidParameter, op, "gate control list has %d entries, want 1-%d", n, types.MaxGateControlEntries)
	}
	for i, e := range cfg.GateControlList {
		if e.IntervalNs == 0 {
			return result.New(result.InvalidParameter, op, "gate control entry %d has a zero interval", i)
		}
	}
	return nil
}

func ValidateFramePreemption(op string, cfg *types.FramePreemptionConfig) error {
	if cfg == nil {
		return result.New(result.InvalidParameter, op, "nil frame preemption config")
	}
	if cfg.PreemptibleQueues == 0xFF {
		return result.New(result.InvalidParameter, op, "at least one queue must stay express")
	}
	if cfg.AdditionalFragmentSize > 3 {
		return result.New(result.InvalidParameter, op, "additional fragment size %d out of range 0-3", cfg.AdditionalFragmentSize)
	}
	return nil
}

func ValidateTrafficClass(op string, tc uint8) error {
	if tc > types.MaxTrafficClass {
		return result.New(result.InvalidParameter, op, "traffic class %d out of range 0-%d", tc, types.MaxTrafficClass)
	}
	return nil
}

func ValidatePriority(op string, prio uint8) error {
	if prio > types.MaxPriority {
		return result.New(result.InvalidParameter, op, "priority %d out of range 0-%d", prio, types.MaxPriority)
	}
	return nil
}

func ValidateVLANID(op string, id uint16) error {
	if id > types.MaxVLANID {
		return result.New(result.InvalidParameter, op, "VLAN id %d out of range 0-%d", id, types.MaxVLANID)
	}
	return nil
}

func ValidateVLANTag(op string, tag *types.VLANTag) error {
	if tag == nil {
		return result.New(result.InvalidParameter, op, "nil VLAN tag")
	}
	if err := ValidateVLANID(op, tag.ID); err != nil {
		return err
	}
	return ValidatePriority(op, tag.Priority)
}

func ValidateCBS(op string, tc uint8, cfg *types.CBSConfig) error {
	if cfg == nil {
		return result.New(result.InvalidParameter, op, "nil CBS config")
	}
	return ValidateTrafficClass(op, tc)
}

func ValidateBandwidth(op string, tc uint8, percent uint32) error {
	if err := ValidateTrafficClass(op, tc); err != nil {
		return err
	}
	if percent > types.MaxBandwidthPercent {
		return result.New(result.InvalidParameter, op, "bandwidth %d%% exceeds 100%%", percent)
	}
	return nil
}

// ValidateRateLimit checks tc and that mbps fits the link maximum of desc.
func ValidateRateLimit(op string, desc types.DeviceDescriptor, tc uint8, mbps uint32) error {
	if err := ValidateTrafficClass(op, tc); err != nil {
		return err
	}
	if limit := desc.MaxLinkSpeedMbps(); mbps > limit {
		return result.New(result.InvalidParameter, op, "rate %d Mbps exceeds the %d Mbps link maximum", mbps, limit)
	}
	return nil
}

func ValidatePacket(op string, frame []byte) error {
	if len(frame) == 0 {
		return result.New(result.InvalidParameter, op, "empty packet")
	}
	return nil
}
