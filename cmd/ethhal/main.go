// ethhal is a command-line front end for the Intel Ethernet HAL. It lists
// supported adapters, discovers the ones present, drives the IEEE 1588 clock,
// applies TSN profiles, runs diagnostics and exports PTP clocks to
// containers through CDI.
//
// Usage:
//
//	ethhal list
//	ethhal discover --output json
//	ethhal timestamp read --device 0x125B
//	ethhal tsn apply --device 0x125B --profile tsn.yaml
//	ethhal info --interface enp3s0
//	ethhal doctor --device 0x125B --show-pass
//	ethhal cdi generate --all
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Nativu5/ethernet-hal/pkg/cdi"
	"github.com/Nativu5/ethernet-hal/pkg/config"
	"github.com/Nativu5/ethernet-hal/pkg/discover"
	"github.com/Nativu5/ethernet-hal/pkg/doctor"
	"github.com/Nativu5/ethernet-hal/pkg/hal"
	"github.com/Nativu5/ethernet-hal/pkg/platform"
	"github.com/Nativu5/ethernet-hal/pkg/registry"
	"github.com/Nativu5/ethernet-hal/pkg/result"
	"github.com/Nativu5/ethernet-hal/pkg/types"
	"github.com/Nativu5/ethernet-hal/pkg/utils"
)

// Exit codes following CLI conventions.
const (
	exitOK           = 0
	exitRuntimeError = 1
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// newHAL builds the HAL every command works on.
var newHAL = func() *hal.HAL { return hal.New() }

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeError)
	}
}

// rootCmd builds the top-level cobra command tree.
func rootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "ethhal",
		Short: "Intel Ethernet HAL tool",
		Long:  "A tool for discovering Intel I210/I219/I225/I226 adapters, driving their IEEE 1588 clocks and configuring TSN features.",
		// Silence default usage on runtime errors; we handle exit codes ourselves.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			log.SetLevel(lvl)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	root.AddCommand(
		newListCmd(),
		newDiscoverCmd(),
		newInfoCmd(),
		newTimestampCmd(),
		newTSNCmd(),
		newDoctorCmd(),
		newCDICmd(),
		newVersionCmd(),
	)

	return root
}

// ──────────────────────────────────────────────
//  list
// ──────────────────────────────────────────────

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List supported adapters and their capabilities",
		Run: func(cmd *cobra.Command, args []string) {
			discover.PrintRegistry(cmd.OutOrStdout(), registry.Default().All())
		},
	}
}

// ──────────────────────────────────────────────
//  discover
// ──────────────────────────────────────────────

func newDiscoverCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover the supported adapters present on this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := newHAL()
			devices, err := probeAll(h)
			if err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}
			return printDevices(cmd.OutOrStdout(), devices, output)
		},
	}

	cmd.Flags().StringVar(&output, "output", "table", "Output format (table|json|yaml)")

	return cmd
}

func printDevices(w io.Writer, devices []types.DeviceInfo, output string) error {
	switch output {
	case "json":
		return discover.PrintJSON(w, devices)
	case "yaml":
		return discover.PrintYAML(w, devices)
	case "table":
		if len(devices) == 0 {
			fmt.Fprintln(w, "No supported adapters found.")
			return nil
		}
		discover.PrintTable(w, devices)
		return nil
	default:
		return fmt.Errorf("unsupported output %q: use table, json or yaml", output)
	}
}

// ──────────────────────────────────────────────
//  info
// ──────────────────────────────────────────────

func newInfoCmd() *cobra.Command {
	var device, iface string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Open an adapter and print what the HAL knows about it",
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := resolveDevice(device, iface)
			if err != nil {
				return err
			}
			return withDevice(device, func(h *hal.HAL, hd hal.Handle) error {
				info, err := deviceInfo(h, hd)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				d := info.Descriptor
				fmt.Fprintf(w, "Device:       %s (%s)\n", d.Name, registry.FormatDeviceID(d.DeviceID))
				fmt.Fprintf(w, "Family:       %s\n", d.Family)
				fmt.Fprintf(w, "Description:  %s\n", d.Description)
				fmt.Fprintf(w, "Backend:      %s\n", h.Backend().Kind())
				fmt.Fprintf(w, "Interface:    %s\n", utils.OrPlaceholder(info.Interface.Name, "(none)"))
				if len(info.Interface.MAC) > 0 {
					fmt.Fprintf(w, "MAC:          %s\n", info.Interface.MAC)
				}
				fmt.Fprintf(w, "Speed:        %d Mb/s (max %d)\n", info.Interface.SpeedMbps, d.MaxLinkSpeedMbps())
				fmt.Fprintf(w, "Link:         %s\n", upDown(info.Interface.LinkUp))
				fmt.Fprintf(w, "Capabilities: %s (%s)\n", d.Capabilities, info.CapabilityList())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Device ID (e.g. 0x125B)")
	cmd.Flags().StringVar(&iface, "interface", "", "Network interface of the adapter (e.g. enp3s0)")
	cmd.MarkFlagsMutuallyExclusive("device", "interface")
	cmd.MarkFlagsOneRequired("device", "interface")

	return cmd
}

// ──────────────────────────────────────────────
//  timestamp
// ──────────────────────────────────────────────

func newTimestampCmd() *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "timestamp",
		Short: "Read and steer the adapter IEEE 1588 clock",
	}
	cmd.PersistentFlags().StringVar(&device, "device", "", "Device ID (e.g. 0x125B)")
	_ = cmd.MarkPersistentFlagRequired("device")

	read := &cobra.Command{
		Use:   "read",
		Short: "Read the adapter clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(device, func(h *hal.HAL, hd hal.Handle) error {
				ts, err := h.ReadTimestamp(hd)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ts)
				return nil
			})
		},
	}

	toggle := func(use string, enable bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: fmt.Sprintf("%s hardware packet timestamping", strings.ToUpper(use[:1])+use[1:]),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDevice(device, func(h *hal.HAL, hd hal.Handle) error {
					if err := h.EnableTimestamping(hd, enable); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Timestamping %sd on %s\n", use, device)
					return nil
				})
			},
		}
	}

	var seconds uint64
	var nanos uint32
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the adapter clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := types.Timestamp{Seconds: seconds, Nanoseconds: nanos}
			return withDevice(device, func(h *hal.HAL, hd hal.Handle) error {
				if err := h.SetTimestamp(hd, ts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Clock set to %s\n", ts)
				return nil
			})
		},
	}
	set.Flags().Uint64Var(&seconds, "seconds", 0, "Seconds part of the new time")
	set.Flags().Uint32Var(&nanos, "nanoseconds", 0, "Nanoseconds part of the new time")
	set.MarkFlagsOneRequired("seconds", "nanoseconds")

	var ppb int32
	adjust := &cobra.Command{
		Use:   "adjust",
		Short: "Adjust the adapter clock frequency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(device, func(h *hal.HAL, hd hal.Handle) error {
				if err := h.AdjustFrequency(hd, ppb); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Frequency adjusted by %d ppb\n", ppb)
				return nil
			})
		},
	}
	adjust.Flags().Int32Var(&ppb, "ppb", 0, "Frequency offset in parts per billion")
	_ = adjust.MarkFlagRequired("ppb")

	cmd.AddCommand(read, toggle("enable", true), toggle("disable", false), set, adjust)
	return cmd
}

// ──────────────────────────────────────────────
//  tsn
// ──────────────────────────────────────────────

func newTSNCmd() *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "tsn",
		Short: "Configure Time-Sensitive Networking features",
	}
	cmd.PersistentFlags().StringVar(&device, "device", "", "Device ID (e.g. 0x125B)")
	_ = cmd.MarkPersistentFlagRequired("device")

	var (
		profilePath string
		check       bool
	)
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Apply a YAML TSN profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := config.Load(profilePath)
			if err != nil {
				return err
			}
			return withDevice(device, func(h *hal.HAL, hd hal.Handle) error {
				if check {
					info, err := h.GetDeviceInfo(hd)
					if err != nil {
						return err
					}
					if err := profile.Validate(info.Descriptor); err != nil {
						return fmt.Errorf("invalid TSN profile for %s: %w", info.Descriptor.Name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Profile %s is valid for %s\n", profilePath, info.Descriptor.Name)
					return nil
				}
				if err := profile.Apply(h, hd); err != nil {
					return err
				}
				return printTSNStatus(cmd.OutOrStdout(), h, hd)
			})
		},
	}
	apply.Flags().StringVar(&profilePath, "profile", "", "Path to the TSN profile")
	apply.Flags().BoolVar(&check, "check", false, "Only validate the profile against the adapter")
	_ = apply.MarkFlagRequired("profile")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show Time-Aware Shaper and Frame Preemption status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(device, func(h *hal.HAL, hd hal.Handle) error {
				return printTSNStatus(cmd.OutOrStdout(), h, hd)
			})
		},
	}

	cmd.AddCommand(apply, status)
	return cmd
}

func printTSNStatus(w io.Writer, h *hal.HAL, hd hal.Handle) error {
	tas, err := h.GetTASStatus(hd)
	if err != nil {
		return err
	}
	fp, err := h.GetFramePreemptionStatus(hd)
	if err != nil {
		return err
	}

	if tas.Enabled {
		fmt.Fprintf(w, "TAS:  enabled (%s), cycle %d ns, %d entries\n", tas.Mode, tas.Config.CycleTimeNs, len(tas.Config.GateControlList))
		for i, e := range tas.Config.GateControlList {
			fmt.Fprintf(w, "  [%d] gates %08b for %d ns\n", i, e.GateState, e.IntervalNs)
		}
	} else {
		fmt.Fprintln(w, "TAS:  disabled")
	}
	if fp.Enabled {
		fmt.Fprintf(w, "FP:   enabled (%s), preemptible queues %08b\n", fp.Mode, fp.Config.PreemptibleQueues)
	} else {
		fmt.Fprintln(w, "FP:   disabled")
	}
	return nil
}

// ──────────────────────────────────────────────
//  doctor
// ──────────────────────────────────────────────

func newDoctorCmd() *cobra.Command {
	var (
		device   string
		iface    string
		strict   bool
		showPass bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment diagnostics for adapter readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := resolveDevice(device, iface)
			if err != nil {
				return err
			}
			h := newHAL()
			ids, err := targetIDs(h, device)
			if err != nil {
				return err
			}

			var reports []*doctor.Report
			for _, id := range ids {
				hd, err := h.OpenDevice(id)
				if err != nil {
					return fmt.Errorf("cannot open %s: %w", id, err)
				}
				info, err := deviceInfo(h, hd)
				if err == nil {
					reports = append(reports, doctor.DiagnoseDevice(info, func() (types.Timestamp, error) {
						return h.ReadTimestamp(hd)
					}))
				}
				_ = h.Release(hd)
				if err != nil {
					return err
				}
			}
			merged := doctor.MergeReports(reports...)

			switch output {
			case "json":
				if err := doctor.PrintJSON(cmd.OutOrStdout(), merged, showPass); err != nil {
					return err
				}
			default:
				doctor.PrintTable(cmd.OutOrStdout(), merged, showPass)
			}

			return doctorVerdict(merged, strict)
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Device ID to check (all present adapters if omitted)")
	cmd.Flags().StringVar(&iface, "interface", "", "Network interface of the adapter to check")
	cmd.MarkFlagsMutuallyExclusive("device", "interface")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero on warnings")
	cmd.Flags().BoolVar(&showPass, "show-pass", false, "Show passed checks in output")
	cmd.Flags().StringVar(&output, "output", "table", "Output format (table|json)")

	return cmd
}

// doctorVerdict turns a report into the command's exit status.
func doctorVerdict(report *doctor.Report, strict bool) error {
	if report.HasFail {
		return errors.New("diagnostics found failures")
	}
	if strict && report.HasWarn {
		return errors.New("diagnostics found warnings")
	}
	return nil
}

// ──────────────────────────────────────────────
//  cdi
// ──────────────────────────────────────────────

func newCDICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cdi",
		Short: "Export adapter PTP clocks to containers",
	}
	cmd.AddCommand(newGenerateCmd(), newCleanupCmd())
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		all       bool
		device    string
		prefix    string
		name      string
		outputDir string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a CDI spec exposing adapter PTP clocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := newHAL()

			var devices []types.DeviceInfo
			if all {
				var err error
				devices, err = probeAll(h)
				if err != nil {
					return fmt.Errorf("device discovery failed: %w", err)
				}
				if len(devices) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No supported adapters found.")
					return nil
				}
			} else {
				err := withHAL(h, device, func(hd hal.Handle) error {
					info, err := deviceInfo(h, hd)
					devices = append(devices, info)
					return err
				})
				if err != nil {
					return fmt.Errorf("device discovery failed: %w", err)
				}
			}

			path, err := cdi.CreateCDISpec(prefix, name, devices, outputDir, format)
			if err != nil {
				return fmt.Errorf("CDI spec generation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CDI spec written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Export every adapter present")
	cmd.Flags().StringVar(&device, "device", "", "Device ID (e.g. 0x125B)")
	cmd.Flags().StringVar(&prefix, "prefix", cdi.DefaultPrefix, "CDI vendor prefix")
	cmd.Flags().StringVar(&name, "name", cdi.DefaultName, "CDI class name")
	cmd.Flags().StringVar(&outputDir, "output-dir", cdi.DefaultOutputDir, "Output directory for CDI spec files")
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (json|yaml)")

	cmd.MarkFlagsMutuallyExclusive("all", "device")
	cmd.MarkFlagsOneRequired("all", "device")

	return cmd
}

func newCleanupCmd() *cobra.Command {
	var (
		prefix    string
		name      string
		outputDir string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove CDI spec files created by this tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := cdi.CleanupSpecs(outputDir, prefix, name, dryRun)
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching spec files found.")
				return nil
			}
			action := "Removed"
			if dryRun {
				action = "Would remove"
			}
			for _, f := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", action, f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", cdi.DefaultPrefix, "CDI vendor prefix to match")
	cmd.Flags().StringVar(&name, "name", "", "CDI class name to match (all if omitted)")
	cmd.Flags().StringVar(&outputDir, "output-dir", cdi.DefaultOutputDir, "CDI spec directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview files that would be removed")

	return cmd
}

// ──────────────────────────────────────────────
//  version
// ──────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ethhal %s, HAL API %s (commit: %s, built: %s)\n",
				version, hal.Version(), commit, buildDate)
		},
	}
}

// ──────────────────────────────────────────────
//  helpers
// ──────────────────────────────────────────────

// interfaceDeviceID maps a network interface to its PCI IDs.
var interfaceDeviceID = platform.InterfaceDeviceID

// resolveDevice returns device, or the device ID of the adapter behind iface
// when one is named.
func resolveDevice(device, iface string) (string, error) {
	if iface == "" {
		return device, nil
	}
	vendor, id, err := interfaceDeviceID(iface)
	if err != nil {
		return "", err
	}
	if vendor != types.IntelVendorID {
		return "", fmt.Errorf("interface %s is not an Intel adapter (vendor %04x)", iface, vendor)
	}
	log.Debugf("interface %s is device %s", iface, registry.FormatDeviceID(id))
	return registry.FormatDeviceID(id), nil
}

// withDevice opens device on a fresh HAL, runs fn and releases the handle.
func withDevice(device string, fn func(h *hal.HAL, hd hal.Handle) error) error {
	h := newHAL()
	return withHAL(h, device, func(hd hal.Handle) error { return fn(h, hd) })
}

func withHAL(h *hal.HAL, device string, fn func(hd hal.Handle) error) error {
	hd, err := h.OpenDevice(device)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", device, err)
	}
	defer func() {
		if err := h.Release(hd); err != nil {
			log.Warnf("release %s: %v", hd, err)
		}
	}()
	return fn(hd)
}

// deviceInfo returns the descriptor and platform context of hd with fresh
// link details.
func deviceInfo(h *hal.HAL, hd hal.Handle) (types.DeviceInfo, error) {
	info, err := h.GetDeviceInfo(hd)
	if err != nil {
		return info, err
	}
	iface, err := h.GetInterfaceInfo(hd)
	if err != nil {
		log.Warnf("%s: cannot refresh link state: %v", info.Descriptor.Name, err)
		return info, nil
	}
	info.Interface = iface
	return info, nil
}

// targetIDs resolves the adapters a command works on: device when given,
// otherwise every adapter present.
func targetIDs(h *hal.HAL, device string) ([]string, error) {
	if device != "" {
		return []string{device}, nil
	}
	descs, err := h.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("device discovery failed: %w", err)
	}
	ids := make([]string, 0, len(descs))
	for _, d := range descs {
		ids = append(ids, registry.FormatDeviceID(d.DeviceID))
	}
	return ids, nil
}

// probeAll opens every adapter present long enough to read its details.
func probeAll(h *hal.HAL) ([]types.DeviceInfo, error) {
	ids, err := targetIDs(h, "")
	if err != nil {
		return nil, err
	}
	devices := make([]types.DeviceInfo, 0, len(ids))
	for _, id := range ids {
		err := withHAL(h, id, func(hd hal.Handle) error {
			info, err := deviceInfo(h, hd)
			if err == nil {
				devices = append(devices, info)
			}
			return err
		})
		if err != nil {
			switch result.KindOf(err) {
			case result.AccessDenied, result.DeviceBusy:
				log.Warnf("skipping %s: %v", id, err)
				continue
			}
			return nil, err
		}
	}
	return devices, nil
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
