// Package doctor provides adapter environment diagnostics.
// It checks the bound driver, kernel modules, link attributes, the PTP
// hardware clock and the monotonicity of timestamp reads.
package doctor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/vishvananda/netlink"

	"github.com/Nativu5/ethernet-hal/pkg/types"
	"github.com/Nativu5/ethernet-hal/pkg/utils"
)

// Severity levels for diagnostic checks.
type Severity string

const (
	Pass Severity = "PASS"
	Warn Severity = "WARN"
	Fail Severity = "FAIL"
)

var sysModule = "/sys/module"

// expectedDrivers maps each family to the Linux driver that serves it.
var expectedDrivers = map[types.Family]string{
	types.FamilyI210: "igb",
	types.FamilyI219: "e1000e",
	types.FamilyI225: "igc",
	types.FamilyI226: "igc",
}

// ClockReader reads the adapter clock once.
type ClockReader func() (types.Timestamp, error)

// CheckResult represents one diagnostic check outcome.
type CheckResult struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Device   string   `json:"device,omitempty"`
}

// Report holds all diagnostic results for one or more adapters.
type Report struct {
	Results []CheckResult `json:"results"`
	HasWarn bool          `json:"-"`
	HasFail bool          `json:"-"`
}

// add appends a result and updates summary flags.
func (r *Report) add(cr CheckResult) {
	r.Results = append(r.Results, cr)
	switch cr.Severity {
	case Warn:
		r.HasWarn = true
	case Fail:
		r.HasFail = true
	}
}

// filtered returns results, optionally excluding PASS entries.
func (r *Report) filtered(showPass bool) []CheckResult {
	if showPass {
		return r.Results
	}
	var out []CheckResult
	for _, cr := range r.Results {
		if cr.Severity != Pass {
			out = append(out, cr)
		}
	}
	return out
}

// deviceLabel is the Device column value for info.
func deviceLabel(info types.DeviceInfo) string {
	if loc := utils.Location(info.Platform); loc != "" {
		return loc
	}
	return info.Descriptor.PCIID()
}

// DiagnoseDevice runs all checks on one opened adapter. read may be nil,
// which skips the clock checks.
func DiagnoseDevice(info types.DeviceInfo, read ClockReader) *Report {
	report := &Report{}
	dev := deviceLabel(info)

	lc, isLinux := info.Platform.(*types.LinuxContext)

	// 1. Driver binding and kernel module
	if isLinux {
		checkDriver(report, info.Descriptor, lc.Driver, dev)
	}

	// 2. Network interface & link attributes
	if info.Interface.Name != "" {
		report.add(CheckResult{
			Check:    "net_interface",
			Severity: Pass,
			Message:  fmt.Sprintf("Interface: %s", info.Interface.Name),
			Device:   dev,
		})
		if isLinux {
			checkLinkAttrs(report, info.Interface.Name, dev)
		}
	} else {
		report.add(CheckResult{
			Check:    "net_interface",
			Severity: Warn,
			Message:  "No network interface associated",
			Device:   dev,
		})
	}

	// 3. PTP hardware clock
	if isLinux {
		checkPHC(report, info.Descriptor, lc, dev)
	}

	// 4. Timestamp reads
	if read != nil && info.Descriptor.HasCapability(types.CapBasic1588) {
		checkClockMonotonic(report, read, dev)
	}

	// 5. TSN feature summary
	checkTSN(report, info.Descriptor, dev)

	return report
}

// checkDriver verifies that the family's driver is bound and loaded.
func checkDriver(report *Report, desc types.DeviceDescriptor, driver, dev string) {
	want, known := expectedDrivers[desc.Family]
	switch {
	case driver == "":
		report.add(CheckResult{
			Check:    "driver",
			Severity: Fail,
			Message:  "No kernel driver bound to the adapter",
			Device:   dev,
		})
	case known && driver != want:
		report.add(CheckResult{
			Check:    "driver",
			Severity: Warn,
			Message:  fmt.Sprintf("Bound to %s, %s adapters are normally served by %s", driver, desc.Family, want),
			Device:   dev,
		})
	default:
		report.add(CheckResult{
			Check:    "driver",
			Severity: Pass,
			Message:  fmt.Sprintf("Driver: %s", driver),
			Device:   dev,
		})
	}

	if !known {
		return
	}
	if _, err := os.Stat(filepath.Join(sysModule, want)); os.IsNotExist(err) {
		report.add(CheckResult{
			Check:    "kernel_modules",
			Severity: Fail,
			Message:  fmt.Sprintf("Kernel module %s is not loaded", want),
			Device:   dev,
		})
		return
	}
	report.add(CheckResult{
		Check:    "kernel_modules",
		Severity: Pass,
		Message:  fmt.Sprintf("Kernel module %s loaded", want),
		Device:   dev,
	})
}

// checkLinkAttrs uses netlink to inspect link state and MTU.
func checkLinkAttrs(report *Report, ifName, dev string) {
	link, err := netlink.LinkByName(ifName)
	if err != nil {
		report.add(CheckResult{
			Check:    "link_attrs",
			Severity: Warn,
			Message:  fmt.Sprintf("Cannot query link %s: %v", ifName, err),
			Device:   dev,
		})
		return
	}

	attrs := link.Attrs()
	sev := Warn
	if attrs.OperState == netlink.OperUp {
		sev = Pass
	}
	report.add(CheckResult{
		Check:    "link_state",
		Severity: sev,
		Message:  fmt.Sprintf("Link %s is %s (MTU: %d)", ifName, attrs.OperState, attrs.MTU),
		Device:   dev,
	})
}

// checkPHC reports whether the PTP hardware clock was found and opened.
func checkPHC(report *Report, desc types.DeviceDescriptor, lc *types.LinuxContext, dev string) {
	switch {
	case lc.HasPHC:
		msg := fmt.Sprintf("PTP clock %s open", lc.PHCPath)
		if lc.MaxAdjPPB > 0 {
			msg += fmt.Sprintf(" (max adjustment %d ppb)", lc.MaxAdjPPB)
		}
		report.add(CheckResult{Check: "ptp_clock", Severity: Pass, Message: msg, Device: dev})
	case lc.PHCIndex >= 0:
		report.add(CheckResult{
			Check:    "ptp_clock",
			Severity: Warn,
			Message:  fmt.Sprintf("PTP clock %s exists but could not be opened; timestamps fall back to the host clock", lc.PHCPath),
			Device:   dev,
		})
	case desc.HasCapability(types.CapBasic1588):
		report.add(CheckResult{
			Check:    "ptp_clock",
			Severity: Fail,
			Message:  "Adapter supports IEEE 1588 but exposes no PTP clock",
			Device:   dev,
		})
	}
}

// checkClockMonotonic reads the clock twice and expects it not to go back.
func checkClockMonotonic(report *Report, read ClockReader, dev string) {
	first, err := read()
	if err == nil {
		var second types.Timestamp
		second, err = read()
		if err == nil {
			if second.Before(first) {
				report.add(CheckResult{
					Check:    "clock_monotonic",
					Severity: Fail,
					Message:  fmt.Sprintf("Clock went backwards: %s then %s", first, second),
					Device:   dev,
				})
				return
			}
			report.add(CheckResult{
				Check:    "clock_monotonic",
				Severity: Pass,
				Message:  fmt.Sprintf("Clock reads %s", second),
				Device:   dev,
			})
			return
		}
	}
	report.add(CheckResult{
		Check:    "clock_monotonic",
		Severity: Warn,
		Message:  fmt.Sprintf("Cannot read clock: %v", err),
		Device:   dev,
	})
}

// checkTSN lists the TSN features available on the adapter.
func checkTSN(report *Report, desc types.DeviceDescriptor, dev string) {
	var features []string
	for _, c := range []types.Capability{types.CapTSNTAS, types.CapTSNFP, types.CapAVBShaping, types.CapEnhancedTS} {
		if desc.HasCapability(c) {
			features = append(features, c.Name())
		}
	}
	if len(features) == 0 {
		report.add(CheckResult{
			Check:    "tsn_features",
			Severity: Pass,
			Message:  "No TSN features on this adapter",
			Device:   dev,
		})
		return
	}
	report.add(CheckResult{
		Check:    "tsn_features",
		Severity: Pass,
		Message:  strings.Join(features, ", "),
		Device:   dev,
	})
}

// PrintTable renders the diagnostic report as a table.
// When showPass is false, only WARN/FAIL results are shown.
func PrintTable(w io.Writer, report *Report, showPass bool) {
	results := report.filtered(showPass)
	if len(results) == 0 {
		fmt.Fprintln(w, "All checks passed.")
		return
	}
	table := tablewriter.NewTable(w)
	table.Header("STATUS", "CHECK", "DEVICE", "MESSAGE")
	for _, r := range results {
		marker := "✓"
		switch r.Severity {
		case Warn:
			marker = "!"
		case Fail:
			marker = "✗"
		}
		status := fmt.Sprintf("%s %s", marker, r.Severity)
		table.Append(status, r.Check, utils.OrPlaceholder(r.Device, "(host)"), r.Message)
	}
	table.Render()
}

// PrintJSON renders the diagnostic report as JSON.
// When showPass is false, only WARN/FAIL results are included.
func PrintJSON(w io.Writer, report *Report, showPass bool) error {
	results := report.filtered(showPass)
	if results == nil {
		results = []CheckResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// MergeReports combines multiple per-device reports into one.
func MergeReports(reports ...*Report) *Report {
	merged := &Report{}
	for _, r := range reports {
		for _, cr := range r.Results {
			merged.add(cr)
		}
	}
	return merged
}
