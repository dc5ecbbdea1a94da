// Package cdi generates CDI (Container Device Interface) spec files that
// hand an adapter's PTP hardware clock to containers.
package cdi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	cdiparser "tags.cncf.io/container-device-interface/pkg/parser"
	cdiSpecs "tags.cncf.io/container-device-interface/specs-go"

	"github.com/Nativu5/ethernet-hal/pkg/types"
	"github.com/Nativu5/ethernet-hal/pkg/utils"

	"sigs.k8s.io/yaml"
)

const (
	// FilePrefix is prepended to all spec files written by this tool
	// to enable safe cleanup without affecting specs from other sources.
	FilePrefix = "ethhal"

	// DefaultOutputDir is the standard CDI spec directory.
	DefaultOutputDir = "/etc/cdi"

	// DefaultPrefix and DefaultName form the default kind "intel.com/ptp".
	DefaultPrefix = "intel.com"
	DefaultName   = "ptp"

	// Environment variables injected into containers.
	EnvClock     = "ETHHAL_PTP_DEVICE"
	EnvInterface = "ETHHAL_INTERFACE"
)

// SpecFileName returns the deterministic file name for a given prefix, name, and format.
// Format: ethhal_<prefix>_<name>.<ext>
func SpecFileName(prefix, name, format string) string {
	safePrefix := strings.ReplaceAll(prefix, "/", "_")
	return fmt.Sprintf("%s_%s_%s.%s", FilePrefix, safePrefix, name, format)
}

// DeviceName is the CDI device name of an adapter, derived from its location.
func DeviceName(info types.DeviceInfo) string {
	if loc := utils.Location(info.Platform); loc != "" {
		return utils.SanitizeName(loc)
	}
	return utils.SanitizeName(info.Interface.Name)
}

// exportable returns the adapters that have a PHC node to hand out.
func exportable(devices []types.DeviceInfo) []types.DeviceInfo {
	var out []types.DeviceInfo
	for _, dev := range devices {
		if utils.ClockDevice(dev.Platform) == "" {
			log.Warnf("skipping %s at %s: no PTP clock",
				dev.Descriptor.Name, utils.OrPlaceholder(utils.Location(dev.Platform), "(unknown)"))
			continue
		}
		out = append(out, dev)
	}
	return out
}

// BuildSpec assembles the CDI spec for the given adapters. Adapters without
// a PTP clock are skipped.
func BuildSpec(resourcePrefix, resourceName string, devices []types.DeviceInfo) *cdiSpecs.Spec {
	devs := exportable(devices)
	cdiDevices := make([]cdiSpecs.Device, 0, len(devs))

	for _, dev := range devs {
		clock := utils.ClockDevice(dev.Platform)
		edits := cdiSpecs.ContainerEdits{
			DeviceNodes: []*cdiSpecs.DeviceNode{{
				Path:        clock,
				HostPath:    clock,
				Permissions: "rw",
			}},
			Env: []string{EnvClock + "=" + clock},
		}
		if dev.Interface.Name != "" {
			edits.Env = append(edits.Env, EnvInterface+"="+dev.Interface.Name)
		}
		cdiDevices = append(cdiDevices, cdiSpecs.Device{
			Name:           DeviceName(dev),
			ContainerEdits: edits,
		})
	}

	return &cdiSpecs.Spec{
		Version: cdiSpecs.CurrentVersion,
		Kind:    resourcePrefix + "/" + resourceName,
		Devices: cdiDevices,
	}
}

// CreateCDISpec generates a CDI spec file for the given adapters and writes it
// to outputDir. The file is named according to SpecFileName(). It returns the
// path written.
func CreateCDISpec(resourcePrefix, resourceName string, devices []types.DeviceInfo, outputDir, format string) (string, error) {
	log.Infof("creating CDI spec for resource %q (prefix=%s)", resourceName, resourcePrefix)

	spec := BuildSpec(resourcePrefix, resourceName, devices)

	// Validate before writing
	if err := validateSpec(spec); err != nil {
		return "", fmt.Errorf("generated CDI spec is invalid: %w", err)
	}

	data, err := marshalSpec(spec, format)
	if err != nil {
		return "", fmt.Errorf("cannot marshal CDI spec: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("cannot create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, SpecFileName(resourcePrefix, resourceName, format))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("cannot write CDI spec file %s: %w", filePath, err)
	}

	log.Infof("CDI spec written to %s", filePath)
	return filePath, nil
}

// CreateContainerAnnotations generates CDI container annotations for the
// given adapters. Keys are CDI qualified names (vendor/class=deviceName).
func CreateContainerAnnotations(devices []types.DeviceInfo, resourcePrefix, resourceKind string) (map[string]string, error) {
	devs := exportable(devices)
	if len(devs) == 0 {
		return nil, fmt.Errorf("no adapter with a PTP clock")
	}

	annotations := make(map[string]string)
	for _, dev := range devs {
		qn := cdiparser.QualifiedName(resourcePrefix, resourceKind, DeviceName(dev))
		annotations[qn] = qn
	}

	log.Debugf("created CDI annotations: %v", annotations)
	return annotations, nil
}

// CleanupSpecs removes CDI spec files created by this tool from dir.
// If name is empty, all specs matching the given prefix are removed.
// If name is non-empty, only the exact match is removed.
func CleanupSpecs(dir, prefix, name string, dryRun bool) ([]string, error) {
	if dir == "" {
		dir = DefaultOutputDir
	}

	safePrefix := strings.ReplaceAll(prefix, "/", "_")
	if name != "" {
		return cleanupFiles([]string{
			filepath.Join(dir, fmt.Sprintf("%s_%s_%s.json", FilePrefix, safePrefix, name)),
			filepath.Join(dir, fmt.Sprintf("%s_%s_%s.yaml", FilePrefix, safePrefix, name)),
		}, dryRun)
	}

	// Restrict to known extensions only.
	var matches []string
	for _, ext := range []string{"json", "yaml"} {
		pattern := filepath.Join(dir, fmt.Sprintf("%s_%s_*.%s", FilePrefix, safePrefix, ext))
		m, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob error for pattern %s: %w", pattern, err)
		}
		matches = append(matches, m...)
	}
	return cleanupFiles(matches, dryRun)
}

func cleanupFiles(paths []string, dryRun bool) ([]string, error) {
	removed := make([]string, 0)
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if dryRun {
			log.Infof("[dry-run] would remove: %s", p)
			removed = append(removed, p)
			continue
		}
		log.Infof("removing CDI spec file: %s", p)
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("cannot remove %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// validateSpec checks the kind and device names against the CDI grammar.
func validateSpec(spec *cdiSpecs.Spec) error {
	vendor, class, ok := strings.Cut(spec.Kind, "/")
	if !ok {
		return fmt.Errorf("spec kind %q must be vendor/class", spec.Kind)
	}
	if err := cdiparser.ValidateVendorName(vendor); err != nil {
		return err
	}
	if err := cdiparser.ValidateClassName(class); err != nil {
		return err
	}
	if len(spec.Devices) == 0 {
		return fmt.Errorf("spec must contain at least one device")
	}
	for _, d := range spec.Devices {
		if err := cdiparser.ValidateDeviceName(d.Name); err != nil {
			return err
		}
	}
	return nil
}

// marshalSpec serializes a CDI spec to JSON or YAML bytes.
func marshalSpec(spec *cdiSpecs.Spec, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(spec, "", "  ")
	case "yaml":
		jsonData, err := json.Marshal(spec)
		if err != nil {
			return nil, err
		}
		return yaml.JSONToYAML(jsonData)
	default:
		return nil, fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
}
