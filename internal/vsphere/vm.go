package vsphere

import (
	"context"
	"fmt"
	"log"

	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vapi/vcenter"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

// Guestinfo keys for the Ignition payload. CoreOS reads these on first
// boot through the VMware guestinfo interface.
const (
	ignitionDataKey     = "guestinfo.ignition.config.data"
	ignitionEncodingKey = "guestinfo.ignition.config.data.encoding"
	ignitionEncoding    = "gzip+base64"
)

// DeployFromLibrary deploys a new VM from the named library item into the
// default resource pool and VM folder.
func (c *Client) DeployFromLibrary(ctx context.Context, libraryName, itemName, vmName string) error {
	itemID, err := c.libraryItemID(ctx, libraryName, itemName)
	if err != nil {
		return err
	}

	pool, err := c.finder.DefaultResourcePool(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve resource pool: %w", err)
	}
	folders, err := c.datacenter.Folders(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve VM folder: %w", err)
	}

	log.Printf("Deploying %q from library item %q...", vmName, itemName)

	deploy := vcenter.Deploy{
		DeploymentSpec: vcenter.DeploymentSpec{
			Name:               vmName,
			DefaultDatastoreID: c.datastore.Reference().Value,
			AcceptAllEULA:      true,
		},
		Target: vcenter.Target{
			ResourcePoolID: pool.Reference().Value,
			FolderID:       folders.VmFolder.Reference().Value,
		},
	}

	if _, err := vcenter.NewManager(c.rest).DeployLibraryItem(ctx, itemID, deploy); err != nil {
		return fmt.Errorf("failed to deploy %s: %w", vmName, err)
	}
	return nil
}

// SetIgnition injects the encoded Ignition document through the guestinfo
// channel. Must run before first power-on.
func (c *Client) SetIgnition(ctx context.Context, vmName string, encoded []byte) error {
	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return err
	}

	spec := types.VirtualMachineConfigSpec{
		ExtraConfig: []types.BaseOptionValue{
			&types.OptionValue{Key: ignitionDataKey, Value: string(encoded)},
			&types.OptionValue{Key: ignitionEncodingKey, Value: ignitionEncoding},
		},
	}

	task, err := vm.Reconfigure(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to set ignition guestinfo on %s: %w", vmName, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to set ignition guestinfo on %s: %w", vmName, err)
	}
	return nil
}

// ApplyHardware reconfigures CPU count and memory. Zero values leave the
// image defaults untouched.
func (c *Client) ApplyHardware(ctx context.Context, vmName string, cpus int32, memoryMiB int64) error {
	if cpus == 0 && memoryMiB == 0 {
		return nil
	}

	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return err
	}

	spec := types.VirtualMachineConfigSpec{
		NumCPUs:  cpus,
		MemoryMB: memoryMiB,
	}

	log.Printf("Applying hardware overrides to %s (cpus=%d, memory=%dMiB)...", vmName, cpus, memoryMiB)
	task, err := vm.Reconfigure(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to reconfigure %s: %w", vmName, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to reconfigure %s: %w", vmName, err)
	}
	return nil
}

// ExtendRootDisk grows the first (boot) disk to sizeGiB. Shrinking is not
// supported by vSphere, so a target at or below the current size is a
// logged no-op.
func (c *Client) ExtendRootDisk(ctx context.Context, vmName string, sizeGiB int64) error {
	if sizeGiB == 0 {
		return nil
	}

	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return err
	}

	devices, err := vm.Device(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices of %s: %w", vmName, err)
	}

	disks := devices.SelectByType((*types.VirtualDisk)(nil))
	if len(disks) == 0 {
		return fmt.Errorf("VM %s has no disks", vmName)
	}

	disk := disks[0].(*types.VirtualDisk)
	targetKB := sizeGiB * 1024 * 1024
	if disk.CapacityInKB >= targetKB {
		log.Printf("Root disk of %s already %d GiB or larger, skipping resize", vmName, sizeGiB)
		return nil
	}

	log.Printf("Extending root disk of %s to %d GiB...", vmName, sizeGiB)
	disk.CapacityInKB = targetKB

	spec := types.VirtualMachineConfigSpec{
		DeviceChange: []types.BaseVirtualDeviceConfigSpec{
			&types.VirtualDeviceConfigSpec{
				Operation: types.VirtualDeviceConfigSpecOperationEdit,
				Device:    disk,
			},
		},
	}

	task, err := vm.Reconfigure(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to extend root disk of %s: %w", vmName, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to extend root disk of %s: %w", vmName, err)
	}
	return nil
}

// AttachSerialLogger adds a serial port backed by a datastore file, used
// for first-boot debugging.
func (c *Client) AttachSerialLogger(ctx context.Context, vmName, dsPath string) error {
	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return err
	}

	devices, err := vm.Device(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices of %s: %w", vmName, err)
	}

	serial, err := devices.CreateSerialPort()
	if err != nil {
		return fmt.Errorf("failed to create serial port: %w", err)
	}
	serial.Backing = &types.VirtualSerialPortFileBackingInfo{
		VirtualDeviceFileBackingInfo: types.VirtualDeviceFileBackingInfo{
			FileName: c.datastore.Path(dsPath),
		},
	}

	log.Printf("Attaching serial logger %s to %s...", dsPath, vmName)
	if err := vm.AddDevice(ctx, serial); err != nil {
		return fmt.Errorf("failed to attach serial logger to %s: %w", vmName, err)
	}
	return nil
}

// PowerOn powers the VM on and waits for the task.
func (c *Client) PowerOn(ctx context.Context, vmName string) error {
	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return err
	}

	log.Printf("Powering on %s...", vmName)
	task, err := vm.PowerOn(ctx)
	if err != nil {
		return fmt.Errorf("failed to power on %s: %w", vmName, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to power on %s: %w", vmName, err)
	}
	return nil
}

// PowerOff powers the VM off. An already powered-off VM is a logged no-op.
func (c *Client) PowerOff(ctx context.Context, vmName string) error {
	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return err
	}

	state, err := vm.PowerState(ctx)
	if err != nil {
		return fmt.Errorf("failed to get power state of %s: %w", vmName, err)
	}
	if state == types.VirtualMachinePowerStatePoweredOff {
		log.Printf("%s is already powered off", vmName)
		return nil
	}

	log.Printf("Powering off %s...", vmName)
	task, err := vm.PowerOff(ctx)
	if err != nil {
		return fmt.Errorf("failed to power off %s: %w", vmName, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to power off %s: %w", vmName, err)
	}
	return nil
}

// Destroy deletes the VM object and the files still attached to it.
// Independent disks detached beforehand survive.
func (c *Client) Destroy(ctx context.Context, vmName string) error {
	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return err
	}

	log.Printf("Destroying %s...", vmName)
	task, err := vm.Destroy(ctx)
	if err != nil {
		return fmt.Errorf("failed to destroy %s: %w", vmName, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to destroy %s: %w", vmName, err)
	}
	return nil
}

// VMInfo is the observed state of a deployed instance, gathered for the
// removal plan.
type VMInfo struct {
	Name       string     `json:"name" yaml:"name"`
	PowerState string     `json:"powerState" yaml:"powerState"`
	CPUs       int32      `json:"cpus" yaml:"cpus"`
	MemoryMiB  int32      `json:"memoryMiB" yaml:"memoryMiB"`
	Disks      []DiskInfo `json:"disks" yaml:"disks"`
}

// DiskInfo describes one attached virtual disk.
type DiskInfo struct {
	Label       string `json:"label" yaml:"label"`
	File        string `json:"file" yaml:"file"`
	CapacityGiB int64  `json:"capacityGiB" yaml:"capacityGiB"`
	Independent bool   `json:"independent" yaml:"independent"`
}

// Info gathers the VM's power state, sizing, and attached disks.
func (c *Client) Info(ctx context.Context, vmName string) (*VMInfo, error) {
	vm, err := c.vm(ctx, vmName)
	if err != nil {
		return nil, err
	}

	var movm mo.VirtualMachine
	pc := property.DefaultCollector(c.vim)
	if err := pc.RetrieveOne(ctx, vm.Reference(), []string{"config.hardware", "runtime.powerState"}, &movm); err != nil {
		return nil, fmt.Errorf("failed to read properties of %s: %w", vmName, err)
	}

	info := &VMInfo{
		Name:       vmName,
		PowerState: string(movm.Runtime.PowerState),
	}
	if movm.Config != nil {
		info.CPUs = movm.Config.Hardware.NumCPU
		info.MemoryMiB = movm.Config.Hardware.MemoryMB
	}

	devices, err := vm.Device(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices of %s: %w", vmName, err)
	}
	for _, dev := range devices.SelectByType((*types.VirtualDisk)(nil)) {
		disk := dev.(*types.VirtualDisk)
		di := DiskInfo{
			Label:       devices.Name(dev),
			CapacityGiB: disk.CapacityInKB / (1024 * 1024),
		}
		if backing, ok := disk.Backing.(*types.VirtualDiskFlatVer2BackingInfo); ok {
			di.File = backing.FileName
			di.Independent = backing.DiskMode == string(types.VirtualDiskModeIndependent_persistent)
		}
		info.Disks = append(info.Disks, di)
	}

	return info, nil
}
