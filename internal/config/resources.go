package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ResourcesFileName is the sibling file of the Butane source that describes
// optional hardware sizing overrides for the deployed VM.
const ResourcesFileName = "resources.json"

// Resources describes optional hardware overrides applied after the OVA
// deploy. Zero values mean "keep whatever the image ships with".
type Resources struct {
	// CPUs is the number of virtual CPUs.
	CPUs int32 `json:"cpus,omitempty"`

	// MemoryMiB is the memory allocation in MiB.
	MemoryMiB int64 `json:"memory_mib,omitempty"`

	// Disks sizes the root disk and the two persistent data disks, in GiB.
	Disks DiskSizes `json:"disks,omitempty"`
}

// DiskSizes holds per-disk sizing in GiB. Root resizes the disk shipped in
// the OVA (grow only); Docker and Data size the independently lifecycled
// persistent disks created on first deploy.
type DiskSizes struct {
	RootGiB   int64 `json:"root_gib,omitempty"`
	DockerGiB int64 `json:"docker_gib,omitempty"`
	DataGiB   int64 `json:"data_gib,omitempty"`
}

// Validate checks the sizing values. All fields are optional but must be
// positive when set.
func (r *Resources) Validate() error {
	if r.CPUs < 0 {
		return fmt.Errorf("cpus must be >= 0, got %d", r.CPUs)
	}
	if r.MemoryMiB < 0 {
		return fmt.Errorf("memory_mib must be >= 0, got %d", r.MemoryMiB)
	}
	if r.Disks.RootGiB < 0 || r.Disks.DockerGiB < 0 || r.Disks.DataGiB < 0 {
		return fmt.Errorf("disk sizes must be >= 0")
	}
	return nil
}

// LoadResources loads the resources.json sibling of the given Butane file.
// A missing file is not an error and yields nil; a malformed file is fatal.
func LoadResources(butaneFile string) (*Resources, error) {
	path := filepath.Join(filepath.Dir(butaneFile), ResourcesFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var res Resources
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &res, nil
}
