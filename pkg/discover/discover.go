// Package discover provides output formatting for the list and discover
// subcommands.
package discover

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"sigs.k8s.io/yaml"

	"github.com/Nativu5/ethernet-hal/pkg/registry"
	"github.com/Nativu5/ethernet-hal/pkg/types"
	"github.com/Nativu5/ethernet-hal/pkg/utils"
)

// PrintRegistry renders the supported device table.
func PrintRegistry(w io.Writer, descs []types.DeviceDescriptor) {
	table := tablewriter.NewTable(w)
	table.Header("DEVICE ID", "FAMILY", "NAME", "CAPABILITIES")
	for _, d := range descs {
		table.Append(
			registry.FormatDeviceID(d.DeviceID),
			d.Family.String(),
			d.Name,
			strings.Join(d.Capabilities.Names(), ", "),
		)
	}
	table.Render()
}

// PrintTable renders discovered adapters as a human-readable table.
func PrintTable(w io.Writer, devices []types.DeviceInfo) {
	table := tablewriter.NewTable(w)
	table.Header("DEVICE ID", "NAME", "LOCATION", "INTERFACE", "SPEED", "LINK", "CLOCK")
	for _, dev := range devices {
		speed := "(unknown)"
		if dev.Interface.SpeedMbps > 0 {
			speed = fmt.Sprintf("%d Mb/s", dev.Interface.SpeedMbps)
		}
		link := "down"
		if dev.Interface.LinkUp {
			link = "up"
		}
		table.Append(
			registry.FormatDeviceID(dev.Descriptor.DeviceID),
			dev.Descriptor.Name,
			utils.OrPlaceholder(utils.Location(dev.Platform), "(unknown)"),
			utils.OrPlaceholder(dev.Interface.Name, "(none)"),
			speed,
			link,
			utils.OrPlaceholder(utils.ClockDevice(dev.Platform), "(none)"),
		)
	}
	table.Render()
}

// DeviceJSON is the machine-readable representation of a discovered adapter.
type DeviceJSON struct {
	DeviceID     string   `json:"device_id"`
	Family       string   `json:"family"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Backend      string   `json:"backend,omitempty"`
	Location     string   `json:"location,omitempty"`
	Driver       string   `json:"driver,omitempty"`
	Interface    string   `json:"interface,omitempty"`
	MAC          string   `json:"mac,omitempty"`
	SpeedMbps    uint32   `json:"speed_mbps,omitempty"`
	LinkUp       bool     `json:"link_up"`
	Clock        string   `json:"clock,omitempty"`
	Capabilities []string `json:"capabilities"`
}

// ToJSON converts adapters to their machine-readable form.
func ToJSON(devices []types.DeviceInfo) []DeviceJSON {
	out := make([]DeviceJSON, 0, len(devices))
	for _, dev := range devices {
		d := DeviceJSON{
			DeviceID:     registry.FormatDeviceID(dev.Descriptor.DeviceID),
			Family:       dev.Descriptor.Family.String(),
			Name:         dev.Descriptor.Name,
			Description:  dev.Descriptor.Description,
			Location:     utils.Location(dev.Platform),
			Interface:    dev.Interface.Name,
			SpeedMbps:    dev.Interface.SpeedMbps,
			LinkUp:       dev.Interface.LinkUp,
			Clock:        utils.ClockDevice(dev.Platform),
			Capabilities: dev.Descriptor.Capabilities.Names(),
		}
		if dev.Platform != nil {
			d.Backend = string(dev.Platform.Kind())
		}
		if lc, ok := dev.Platform.(*types.LinuxContext); ok {
			d.Driver = lc.Driver
		}
		if len(dev.Interface.MAC) > 0 {
			d.MAC = dev.Interface.MAC.String()
		}
		if d.Capabilities == nil {
			d.Capabilities = []string{}
		}
		out = append(out, d)
	}
	return out
}

// PrintJSON renders discovered adapters as JSON.
func PrintJSON(w io.Writer, devices []types.DeviceInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ToJSON(devices))
}

// PrintYAML renders discovered adapters as YAML.
func PrintYAML(w io.Writer, devices []types.DeviceInfo) error {
	data, err := json.Marshal(ToJSON(devices))
	if err != nil {
		return fmt.Errorf("failed to marshal devices: %w", err)
	}
	out, err := yaml.JSONToYAML(data)
	if err != nil {
		return fmt.Errorf("failed to convert devices to YAML: %w", err)
	}
	_, err = w.Write(out)
	return err
}
