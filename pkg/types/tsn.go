package types

// Range limits for TSN and QoS parameters.
const (
	MaxGateControlEntries = 8
	MaxTrafficClass       = 7
	MaxPriority           = 7
	MaxVLANID             = 4095
	MaxBandwidthPercent   = 100
	NumQueues             = 8
)

// GateControlEntry opens the queues in GateState (one bit per queue) for IntervalNs.
type GateControlEntry struct {
	GateState  uint8  `json:"gateState" yaml:"gateState"`
	IntervalNs uint32 `json:"intervalNs" yaml:"intervalNs"`
}

// TASConfig is an IEEE 802.1Qbv gate schedule.
type TASConfig struct {
	CycleTimeNs     uint64             `json:"cycleTimeNs" yaml:"cycleTimeNs"`
	BaseTimeNs      uint64             `json:"baseTimeNs" yaml:"baseTimeNs"`
	GateControlList []GateControlEntry `json:"gateControlList" yaml:"gateControlList"`
}

// FramePreemptionConfig is an IEEE 802.1Qbu / 802.3br preemption setup.
type FramePreemptionConfig struct {
	// PreemptibleQueues has one bit per queue that may be preempted.
	PreemptibleQueues uint8 `json:"preemptibleQueues" yaml:"preemptibleQueues"`
	// AdditionalFragmentSize is the 802.3br addFragSize (0-3).
	AdditionalFragmentSize uint32 `json:"additionalFragmentSize" yaml:"additionalFragmentSize"`
	VerifyDisable          bool   `json:"verifyDisable" yaml:"verifyDisable"`
	VerifyTimeMs           uint32 `json:"verifyTimeMs" yaml:"verifyTimeMs"`
}

// CBSConfig is the IEEE 802.1Qav credit-based shaper setting of one traffic class.
type CBSConfig struct {
	Enabled   bool  `json:"enabled" yaml:"enabled"`
	SendSlope int32 `json:"sendSlope" yaml:"sendSlope"`
	IdleSlope int32 `json:"idleSlope" yaml:"idleSlope"`
	HiCredit  int32 `json:"hiCredit" yaml:"hiCredit"`
	LoCredit  int32 `json:"loCredit" yaml:"loCredit"`
}

// VLANTag is an 802.1Q tag.
type VLANTag struct {
	ID       uint16 `json:"id" yaml:"id"`
	Priority uint8  `json:"priority" yaml:"priority"`
	DEI      bool   `json:"dei" yaml:"dei"`
}

// ShaperMode tells how a TSN feature is being realized.
type ShaperMode string

const (
	ShaperNone     ShaperMode = "none"
	ShaperHardware ShaperMode = "hardware"
	ShaperSoftware ShaperMode = "software"
)

// TASStatus is the last applied Time-Aware Shaper state.
type TASStatus struct {
	Enabled bool
	Mode    ShaperMode
	Config  TASConfig
}

// FramePreemptionStatus is the last applied Frame Preemption state.
type FramePreemptionStatus struct {
	Enabled bool
	Mode    ShaperMode
	Config  FramePreemptionConfig
}
