package vsphere

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/vmware/govmomi/vim25/types"
)

// EnsureDataDisk attaches the disk at dsPath to the VM. When the backing
// VMDK already exists on the datastore it is attached as-is, preserving
// its contents across redeploys; otherwise a new disk of sizeGiB is
// created. Either way the disk is attached independent_persistent so VM
// snapshots and destruction leave it alone. Returns true when a new disk
// was created.
func (c *Client) EnsureDataDisk(ctx context.Context, vmName, dsPath string, sizeGiB int64) (bool, error) {
	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return false, err
	}

	devices, err := vm.Device(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list devices of %s: %w", vmName, err)
	}

	controller, err := devices.FindDiskController("")
	if err != nil {
		return false, fmt.Errorf("failed to find disk controller on %s: %w", vmName, err)
	}

	exists := true
	if _, err := c.datastore.Stat(ctx, dsPath); err != nil {
		exists = false
	}

	disk := devices.CreateDisk(controller, c.datastore.Reference(), c.datastore.Path(dsPath))
	backing := disk.Backing.(*types.VirtualDiskFlatVer2BackingInfo)
	backing.DiskMode = string(types.VirtualDiskModeIndependent_persistent)

	if exists {
		// Attaching an existing VMDK: leave capacity zero so the
		// reconfigure becomes an attach instead of a create.
		disk.CapacityInKB = 0
		log.Printf("Attaching existing disk %s to %s", dsPath, vmName)
	} else {
		disk.CapacityInKB = sizeGiB * 1024 * 1024
		log.Printf("Creating %d GiB disk %s for %s", sizeGiB, dsPath, vmName)
	}

	if err := vm.AddDevice(ctx, disk); err != nil {
		return false, fmt.Errorf("failed to attach disk %s to %s: %w", dsPath, vmName, err)
	}
	return !exists, nil
}

// DetachDataDisks removes the disks whose backing files match any of the
// given datastore paths, keeping the VMDK files on the datastore. Disks
// not found on the VM are skipped.
func (c *Client) DetachDataDisks(ctx context.Context, vmName string, dsPaths []string) error {
	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return err
	}

	devices, err := vm.Device(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices of %s: %w", vmName, err)
	}

	var detach []types.BaseVirtualDevice
	for _, dev := range devices.SelectByType((*types.VirtualDisk)(nil)) {
		disk := dev.(*types.VirtualDisk)
		backing, ok := disk.Backing.(*types.VirtualDiskFlatVer2BackingInfo)
		if !ok {
			continue
		}
		for _, p := range dsPaths {
			if backingMatches(backing.FileName, p) {
				log.Printf("Detaching %s from %s (file kept)", p, vmName)
				detach = append(detach, dev)
				break
			}
		}
	}

	if len(detach) == 0 {
		log.Printf("No data disks attached to %s", vmName)
		return nil
	}

	// keepFiles leaves the VMDKs on the datastore.
	if err := vm.RemoveDevice(ctx, true, detach...); err != nil {
		return fmt.Errorf("failed to detach disks from %s: %w", vmName, err)
	}
	return nil
}

// backingMatches reports whether the full backing file name, e.g.
// "[datastore1] inst/inst-docker.vmdk", refers to the datastore path.
func backingMatches(backingFile, dsPath string) bool {
	// Strip the "[datastore] " prefix if present.
	name := backingFile
	if i := strings.Index(name, "] "); i >= 0 {
		name = name[i+2:]
	}
	return path.Clean(name) == path.Clean(dsPath)
}
