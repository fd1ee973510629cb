package osconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FixedMount describes one spec.md §4.2 AddFixedMap call to perform at
// startup, loaded from a YAML manifest so cmd/osalctl and integration tests
// can populate a mount table without touching a real filesystem.
type FixedMount struct {
	DeviceName string `yaml:"device_name"`
	VolumeName string `yaml:"volume_name"`
	Physical   string `yaml:"physical_mountpoint"`
	Virtual    string `yaml:"virtual_mountpoint"`
}

// Manifest is the top-level shape of an osalctl mount manifest file.
type Manifest struct {
	FixedMounts []FixedMount `yaml:"fixed_mounts"`
}

// LoadManifest reads and parses a YAML mount manifest from path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("osconfig: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("osconfig: parse manifest: %w", err)
	}
	return m, nil
}
