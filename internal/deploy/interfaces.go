package deploy

import (
	"context"

	"github.com/ovaforge/ovaforge/internal/stream"
	"github.com/ovaforge/ovaforge/internal/vsphere"
)

// hypervisor defines the vSphere operations needed by the deploy and
// remove flows. All operations address VMs by inventory name.
//
// In production, this is satisfied by *vsphere.Client.
// In tests, this is satisfied by mock implementations.
type hypervisor interface {
	// VMExists probes for a VM by name; a miss is not an error
	VMExists(ctx context.Context, name string) (bool, error)

	// EnsureLibrary creates the named content library if absent
	EnsureLibrary(ctx context.Context, name string) error

	// HasLibraryItem probes for a library item by name
	HasLibraryItem(ctx context.Context, libraryName, itemName string) (bool, error)

	// ImportOVA uploads a local OVA as a new library item
	ImportOVA(ctx context.Context, libraryName, itemName, ovaPath string) error

	// DeployFromLibrary deploys a VM from a library item
	DeployFromLibrary(ctx context.Context, libraryName, itemName, vmName string) error

	// SetIgnition injects the encoded Ignition document via guestinfo
	SetIgnition(ctx context.Context, vmName string, encoded []byte) error

	// ApplyHardware reconfigures CPU count and memory
	ApplyHardware(ctx context.Context, vmName string, cpus int32, memoryMiB int64) error

	// ExtendRootDisk grows the boot disk (never shrinks)
	ExtendRootDisk(ctx context.Context, vmName string, sizeGiB int64) error

	// EnsureDataDisk attaches an existing disk or creates a new one
	EnsureDataDisk(ctx context.Context, vmName, dsPath string, sizeGiB int64) (bool, error)

	// AttachSerialLogger adds a file-backed serial port for debugging
	AttachSerialLogger(ctx context.Context, vmName, dsPath string) error

	// PowerOn powers the VM on
	PowerOn(ctx context.Context, vmName string) error

	// PowerOff powers the VM off
	PowerOff(ctx context.Context, vmName string) error

	// DetachDataDisks removes matching disks keeping their files
	DetachDataDisks(ctx context.Context, vmName string, dsPaths []string) error

	// Destroy deletes the VM and its remaining files
	Destroy(ctx context.Context, vmName string) error

	// Info gathers power state, sizing, and disks for the removal plan
	Info(ctx context.Context, vmName string) (*vsphere.VMInfo, error)
}

// imageSource defines the release acquisition operations: signing key,
// stream manifest, and the verified OVA download.
//
// In production, this is satisfied by *releaseSource (stream client plus
// image fetcher). In tests, this is satisfied by mock implementations.
type imageSource interface {
	// EnsureSigningKey downloads and dearmors the signing key, returning
	// the binary keyring path
	EnsureSigningKey(ctx context.Context) (string, error)

	// FetchManifest resolves the current release of a stream
	FetchManifest(ctx context.Context, streamName string) (*stream.Release, error)

	// Fetch downloads (if absent) and verifies the release OVA, returning
	// its local path
	Fetch(ctx context.Context, rel *stream.Release, keyringPath string) (string, error)
}
