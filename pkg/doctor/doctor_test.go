package doctor

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Nativu5/ethernet-hal/pkg/registry"
	"github.com/Nativu5/ethernet-hal/pkg/types"
)

// fakeModules points sysModule at a temp dir holding the given modules.
func fakeModules(t *testing.T, modules ...string) {
	t.Helper()
	dir := t.TempDir()
	for _, m := range modules {
		if err := os.MkdirAll(filepath.Join(dir, m), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	orig := sysModule
	sysModule = dir
	t.Cleanup(func() { sysModule = orig })
}

// steadyClock returns a reader that advances by step on every call.
func steadyClock(start, step uint64) ClockReader {
	now := start
	return func() (types.Timestamp, error) {
		ts := types.TimestampFromNanos(now)
		now += step
		return ts, nil
	}
}

func i226Info() types.DeviceInfo {
	desc, _ := registry.Lookup(registry.DeviceI226LM)
	return types.DeviceInfo{
		Descriptor: desc,
		Platform: &types.LinuxContext{
			PCIAddress: "0000:03:00.0",
			Driver:     "igc",
			PHCIndex:   0,
			PHCPath:    "/dev/ptp0",
			PHCFd:      3,
			HasPHC:     true,
			MaxAdjPPB:  62499999,
		},
	}
}

func findCheck(report *Report, check string) (CheckResult, bool) {
	for _, r := range report.Results {
		if r.Check == check {
			return r, true
		}
	}
	return CheckResult{}, false
}

func TestDiagnoseDevice_Healthy(t *testing.T) {
	fakeModules(t, "igc")
	report := DiagnoseDevice(i226Info(), steadyClock(1000, 10))

	want := map[string]Severity{
		"driver":          Pass,
		"kernel_modules":  Pass,
		"ptp_clock":       Pass,
		"clock_monotonic": Pass,
		"tsn_features":    Pass,
	}
	for check, sev := range want {
		got, ok := findCheck(report, check)
		if !ok {
			t.Errorf("expected %s check in report", check)
			continue
		}
		if got.Severity != sev {
			t.Errorf("%s: severity = %s, want %s (%s)", check, got.Severity, sev, got.Message)
		}
		if got.Device != "0000:03:00.0" {
			t.Errorf("%s: device = %q", check, got.Device)
		}
	}
	if report.HasFail {
		t.Errorf("healthy adapter should not fail: %+v", report.Results)
	}

	tsn, _ := findCheck(report, "tsn_features")
	if !strings.Contains(tsn.Message, "TSN Time Aware Shaping") {
		t.Errorf("tsn_features should list TAS, got %q", tsn.Message)
	}
}

func TestDiagnoseDevice_NoInterface(t *testing.T) {
	fakeModules(t, "igc")
	report := DiagnoseDevice(i226Info(), nil)

	got, ok := findCheck(report, "net_interface")
	if !ok || got.Severity != Warn {
		t.Errorf("net_interface = %+v, want WARN", got)
	}
	if !report.HasWarn {
		t.Error("report should have HasWarn=true")
	}
	if _, ok := findCheck(report, "clock_monotonic"); ok {
		t.Error("clock check should be skipped without a reader")
	}
}

func TestDiagnoseDevice_MissingLink(t *testing.T) {
	fakeModules(t, "igc")
	info := i226Info()
	info.Interface.Name = "ethhal-test-nonexistent0"

	report := DiagnoseDevice(info, nil)
	if got, _ := findCheck(report, "net_interface"); got.Severity != Pass {
		t.Errorf("net_interface severity = %s, want PASS", got.Severity)
	}
	if got, ok := findCheck(report, "link_attrs"); !ok || got.Severity != Warn {
		t.Errorf("link_attrs = %+v, want WARN", got)
	}
}

func TestCheckDriver(t *testing.T) {
	i210, _ := registry.Lookup(registry.DeviceI210Copper)

	tests := []struct {
		name       string
		driver     string
		modules    []string
		wantDriver Severity
		wantModule Severity
	}{
		{"bound_and_loaded", "igb", []string{"igb"}, Pass, Pass},
		{"wrong_driver", "vfio-pci", []string{"igb"}, Warn, Pass},
		{"unbound", "", []string{"igb"}, Fail, Pass},
		{"module_missing", "igb", nil, Pass, Fail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fakeModules(t, tc.modules...)
			report := &Report{}
			checkDriver(report, i210, tc.driver, "dev")

			if got, _ := findCheck(report, "driver"); got.Severity != tc.wantDriver {
				t.Errorf("driver severity = %s, want %s (%s)", got.Severity, tc.wantDriver, got.Message)
			}
			if got, _ := findCheck(report, "kernel_modules"); got.Severity != tc.wantModule {
				t.Errorf("kernel_modules severity = %s, want %s (%s)", got.Severity, tc.wantModule, got.Message)
			}
		})
	}
}

func TestCheckPHC(t *testing.T) {
	i219, _ := registry.Lookup(registry.DeviceI219LM)

	tests := []struct {
		name string
		ctx  *types.LinuxContext
		want Severity
	}{
		{"open", &types.LinuxContext{PHCIndex: 1, PHCPath: "/dev/ptp1", HasPHC: true}, Pass},
		{"present_not_open", &types.LinuxContext{PHCIndex: 1, PHCPath: "/dev/ptp1", PHCFd: -1}, Warn},
		{"absent", &types.LinuxContext{PHCIndex: -1, PHCFd: -1}, Fail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report := &Report{}
			checkPHC(report, i219, tc.ctx, "dev")
			got, ok := findCheck(report, "ptp_clock")
			if !ok {
				t.Fatal("expected ptp_clock check")
			}
			if got.Severity != tc.want {
				t.Errorf("severity = %s, want %s (%s)", got.Severity, tc.want, got.Message)
			}
		})
	}
}

func TestCheckClockMonotonic(t *testing.T) {
	t.Run("backwards", func(t *testing.T) {
		reads := []uint64{5000, 4000}
		read := func() (types.Timestamp, error) {
			ts := types.TimestampFromNanos(reads[0])
			reads = reads[1:]
			return ts, nil
		}
		report := &Report{}
		checkClockMonotonic(report, read, "dev")
		if got, _ := findCheck(report, "clock_monotonic"); got.Severity != Fail {
			t.Errorf("severity = %s, want FAIL", got.Severity)
		}
	})

	t.Run("equal_reads_pass", func(t *testing.T) {
		report := &Report{}
		checkClockMonotonic(report, steadyClock(7, 0), "dev")
		if got, _ := findCheck(report, "clock_monotonic"); got.Severity != Pass {
			t.Errorf("severity = %s, want PASS", got.Severity)
		}
	})

	t.Run("read_error", func(t *testing.T) {
		read := func() (types.Timestamp, error) {
			return types.Timestamp{}, errors.New("clock unavailable")
		}
		report := &Report{}
		checkClockMonotonic(report, read, "dev")
		got, _ := findCheck(report, "clock_monotonic")
		if got.Severity != Warn {
			t.Errorf("severity = %s, want WARN", got.Severity)
		}
		if !strings.Contains(got.Message, "clock unavailable") {
			t.Errorf("message should carry the error, got %q", got.Message)
		}
	})
}

func TestCheckTSN_NoFeatures(t *testing.T) {
	i219, _ := registry.Lookup(registry.DeviceI219LM)
	report := &Report{}
	checkTSN(report, i219, "dev")
	got, _ := findCheck(report, "tsn_features")
	if got.Message != "No TSN features on this adapter" {
		t.Errorf("unexpected message %q", got.Message)
	}
}

func TestDiagnoseDevice_WindowsContext(t *testing.T) {
	desc, _ := registry.Lookup(registry.DeviceI225LM)
	info := types.DeviceInfo{
		Descriptor: desc,
		Interface:  types.InterfaceInfo{Name: "Ethernet 2"},
		Platform:   &types.WindowsContext{AdapterName: "{GUID}"},
	}
	report := DiagnoseDevice(info, steadyClock(1, 1))
	if _, ok := findCheck(report, "driver"); ok {
		t.Error("driver check is Linux only")
	}
	if _, ok := findCheck(report, "link_attrs"); ok {
		t.Error("netlink checks are Linux only")
	}
	if got, _ := findCheck(report, "net_interface"); got.Device != "{GUID}" {
		t.Errorf("device = %q, want adapter GUID", got.Device)
	}
}

// MergeReports tests

func TestMergeReports(t *testing.T) {
	r1 := &Report{}
	r1.add(CheckResult{Check: "a", Severity: Pass, Message: "ok"})

	r2 := &Report{}
	r2.add(CheckResult{Check: "b", Severity: Warn, Message: "warn"})

	merged := MergeReports(r1, r2)

	if len(merged.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(merged.Results))
	}
	if !merged.HasWarn {
		t.Error("merged should have HasWarn=true")
	}
	if merged.HasFail {
		t.Error("merged should not have HasFail")
	}
}

func TestMergeReports_WithFail(t *testing.T) {
	r1 := &Report{}
	r1.add(CheckResult{Check: "a", Severity: Pass})
	r2 := &Report{}
	r2.add(CheckResult{Check: "b", Severity: Fail})

	merged := MergeReports(r1, r2)
	if !merged.HasFail {
		t.Error("merged should have HasFail=true")
	}
}

// Output tests

func TestPrintTable_Output(t *testing.T) {
	report := &Report{}
	report.add(CheckResult{Check: "test_check", Severity: Pass, Message: "all good", Device: "0000:03:00.0"})
	report.add(CheckResult{Check: "test_warn", Severity: Warn, Message: "heads up", Device: "0000:03:00.0"})

	var buf bytes.Buffer
	PrintTable(&buf, report, true)
	output := buf.String()
	if !strings.Contains(output, "PASS") {
		t.Error("table with showPass=true should contain PASS")
	}
	if !strings.Contains(output, "WARN") {
		t.Error("table with showPass=true should contain WARN")
	}

	buf.Reset()
	PrintTable(&buf, report, false)
	output = buf.String()
	if strings.Contains(output, "PASS") {
		t.Error("table with showPass=false should not contain PASS")
	}
	if !strings.Contains(output, "WARN") {
		t.Error("table with showPass=false should still contain WARN")
	}
}

func TestPrintTable_AllPass_NoShowPass(t *testing.T) {
	report := &Report{}
	report.add(CheckResult{Check: "ok", Severity: Pass, Message: "fine"})

	var buf bytes.Buffer
	PrintTable(&buf, report, false)
	if !strings.Contains(buf.String(), "All checks passed.") {
		t.Errorf("expected 'All checks passed.' message, got: %q", buf.String())
	}
}

func TestPrintJSON_Output(t *testing.T) {
	report := &Report{}
	report.add(CheckResult{Check: "test", Severity: Pass, Message: "ok", Device: "0000:03:00.0"})

	var buf bytes.Buffer
	if err := PrintJSON(&buf, report, true); err != nil {
		t.Fatalf("PrintJSON failed: %v", err)
	}
	var results []CheckResult
	if err := json.Unmarshal(buf.Bytes(), &results); err != nil {
		t.Fatalf("JSON output is not valid: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}

	buf.Reset()
	if err := PrintJSON(&buf, report, false); err != nil {
		t.Fatalf("PrintJSON failed: %v", err)
	}
	var filtered []CheckResult
	if err := json.Unmarshal(buf.Bytes(), &filtered); err != nil {
		t.Fatalf("JSON output is not valid: %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("expected 0 results with showPass=false, got %d", len(filtered))
	}
}
