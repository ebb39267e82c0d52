package deploy

import (
	"context"
	"fmt"
	"sync"

	"github.com/ovaforge/ovaforge/internal/stream"
	"github.com/ovaforge/ovaforge/internal/vsphere"
)

// mockHypervisor is a mock implementation of the hypervisor interface for
// testing.
type mockHypervisor struct {
	mu sync.Mutex

	// Configurable behavior
	vmExistsFunc           func(ctx context.Context, name string) (bool, error)
	ensureLibraryFunc      func(ctx context.Context, name string) error
	hasLibraryItemFunc     func(ctx context.Context, libraryName, itemName string) (bool, error)
	importOVAFunc          func(ctx context.Context, libraryName, itemName, ovaPath string) error
	deployFromLibraryFunc  func(ctx context.Context, libraryName, itemName, vmName string) error
	setIgnitionFunc        func(ctx context.Context, vmName string, encoded []byte) error
	applyHardwareFunc      func(ctx context.Context, vmName string, cpus int32, memoryMiB int64) error
	extendRootDiskFunc     func(ctx context.Context, vmName string, sizeGiB int64) error
	ensureDataDiskFunc     func(ctx context.Context, vmName, dsPath string, sizeGiB int64) (bool, error)
	attachSerialLoggerFunc func(ctx context.Context, vmName, dsPath string) error
	powerOnFunc            func(ctx context.Context, vmName string) error
	powerOffFunc           func(ctx context.Context, vmName string) error
	detachDataDisksFunc    func(ctx context.Context, vmName string, dsPaths []string) error
	destroyFunc            func(ctx context.Context, vmName string) error
	infoFunc               func(ctx context.Context, vmName string) (*vsphere.VMInfo, error)

	// Call tracking
	vmExistsCalls           []string
	ensureLibraryCalls      []string
	hasLibraryItemCalls     []string // format: "library/item"
	importOVACalls          []string // format: "library/item"
	deployFromLibraryCalls  []string // vm names
	setIgnitionCalls        []string // vm names
	applyHardwareCalls      []string // vm names
	extendRootDiskCalls     []int64
	ensureDataDiskCalls     []string // datastore paths
	attachSerialLoggerCalls []string // datastore paths
	powerOnCalls            []string
	powerOffCalls           []string
	detachDataDisksCalls    [][]string
	destroyCalls            []string
	infoCalls               []string
}

// newMockHypervisor creates a mock hypervisor with default behavior: the
// VM does not exist, the library and item are absent, and every mutation
// succeeds.
func newMockHypervisor() *mockHypervisor {
	return &mockHypervisor{
		vmExistsFunc: func(ctx context.Context, name string) (bool, error) {
			return false, nil
		},
		ensureLibraryFunc: func(ctx context.Context, name string) error {
			return nil
		},
		hasLibraryItemFunc: func(ctx context.Context, libraryName, itemName string) (bool, error) {
			return false, nil
		},
		importOVAFunc: func(ctx context.Context, libraryName, itemName, ovaPath string) error {
			return nil
		},
		deployFromLibraryFunc: func(ctx context.Context, libraryName, itemName, vmName string) error {
			return nil
		},
		setIgnitionFunc: func(ctx context.Context, vmName string, encoded []byte) error {
			return nil
		},
		applyHardwareFunc: func(ctx context.Context, vmName string, cpus int32, memoryMiB int64) error {
			return nil
		},
		extendRootDiskFunc: func(ctx context.Context, vmName string, sizeGiB int64) error {
			return nil
		},
		ensureDataDiskFunc: func(ctx context.Context, vmName, dsPath string, sizeGiB int64) (bool, error) {
			return true, nil
		},
		attachSerialLoggerFunc: func(ctx context.Context, vmName, dsPath string) error {
			return nil
		},
		powerOnFunc: func(ctx context.Context, vmName string) error {
			return nil
		},
		powerOffFunc: func(ctx context.Context, vmName string) error {
			return nil
		},
		detachDataDisksFunc: func(ctx context.Context, vmName string, dsPaths []string) error {
			return nil
		},
		destroyFunc: func(ctx context.Context, vmName string) error {
			return nil
		},
		infoFunc: func(ctx context.Context, vmName string) (*vsphere.VMInfo, error) {
			return &vsphere.VMInfo{Name: vmName, PowerState: "poweredOn"}, nil
		},
	}
}

// mutationCount reports how many destructive or mutating hypervisor calls
// were made.
func (m *mockHypervisor) mutationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ensureLibraryCalls) +
		len(m.importOVACalls) +
		len(m.deployFromLibraryCalls) +
		len(m.setIgnitionCalls) +
		len(m.applyHardwareCalls) +
		len(m.extendRootDiskCalls) +
		len(m.ensureDataDiskCalls) +
		len(m.attachSerialLoggerCalls) +
		len(m.powerOnCalls) +
		len(m.powerOffCalls) +
		len(m.detachDataDisksCalls) +
		len(m.destroyCalls)
}

func (m *mockHypervisor) VMExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	m.vmExistsCalls = append(m.vmExistsCalls, name)
	m.mu.Unlock()
	return m.vmExistsFunc(ctx, name)
}

func (m *mockHypervisor) EnsureLibrary(ctx context.Context, name string) error {
	m.mu.Lock()
	m.ensureLibraryCalls = append(m.ensureLibraryCalls, name)
	m.mu.Unlock()
	return m.ensureLibraryFunc(ctx, name)
}

func (m *mockHypervisor) HasLibraryItem(ctx context.Context, libraryName, itemName string) (bool, error) {
	m.mu.Lock()
	m.hasLibraryItemCalls = append(m.hasLibraryItemCalls, libraryName+"/"+itemName)
	m.mu.Unlock()
	return m.hasLibraryItemFunc(ctx, libraryName, itemName)
}

func (m *mockHypervisor) ImportOVA(ctx context.Context, libraryName, itemName, ovaPath string) error {
	m.mu.Lock()
	m.importOVACalls = append(m.importOVACalls, libraryName+"/"+itemName)
	m.mu.Unlock()
	return m.importOVAFunc(ctx, libraryName, itemName, ovaPath)
}

func (m *mockHypervisor) DeployFromLibrary(ctx context.Context, libraryName, itemName, vmName string) error {
	m.mu.Lock()
	m.deployFromLibraryCalls = append(m.deployFromLibraryCalls, vmName)
	m.mu.Unlock()
	return m.deployFromLibraryFunc(ctx, libraryName, itemName, vmName)
}

func (m *mockHypervisor) SetIgnition(ctx context.Context, vmName string, encoded []byte) error {
	m.mu.Lock()
	m.setIgnitionCalls = append(m.setIgnitionCalls, vmName)
	m.mu.Unlock()
	return m.setIgnitionFunc(ctx, vmName, encoded)
}

func (m *mockHypervisor) ApplyHardware(ctx context.Context, vmName string, cpus int32, memoryMiB int64) error {
	m.mu.Lock()
	m.applyHardwareCalls = append(m.applyHardwareCalls, vmName)
	m.mu.Unlock()
	return m.applyHardwareFunc(ctx, vmName, cpus, memoryMiB)
}

func (m *mockHypervisor) ExtendRootDisk(ctx context.Context, vmName string, sizeGiB int64) error {
	m.mu.Lock()
	m.extendRootDiskCalls = append(m.extendRootDiskCalls, sizeGiB)
	m.mu.Unlock()
	return m.extendRootDiskFunc(ctx, vmName, sizeGiB)
}

func (m *mockHypervisor) EnsureDataDisk(ctx context.Context, vmName, dsPath string, sizeGiB int64) (bool, error) {
	m.mu.Lock()
	m.ensureDataDiskCalls = append(m.ensureDataDiskCalls, dsPath)
	m.mu.Unlock()
	return m.ensureDataDiskFunc(ctx, vmName, dsPath, sizeGiB)
}

func (m *mockHypervisor) AttachSerialLogger(ctx context.Context, vmName, dsPath string) error {
	m.mu.Lock()
	m.attachSerialLoggerCalls = append(m.attachSerialLoggerCalls, dsPath)
	m.mu.Unlock()
	return m.attachSerialLoggerFunc(ctx, vmName, dsPath)
}

func (m *mockHypervisor) PowerOn(ctx context.Context, vmName string) error {
	m.mu.Lock()
	m.powerOnCalls = append(m.powerOnCalls, vmName)
	m.mu.Unlock()
	return m.powerOnFunc(ctx, vmName)
}

func (m *mockHypervisor) PowerOff(ctx context.Context, vmName string) error {
	m.mu.Lock()
	m.powerOffCalls = append(m.powerOffCalls, vmName)
	m.mu.Unlock()
	return m.powerOffFunc(ctx, vmName)
}

func (m *mockHypervisor) DetachDataDisks(ctx context.Context, vmName string, dsPaths []string) error {
	m.mu.Lock()
	m.detachDataDisksCalls = append(m.detachDataDisksCalls, dsPaths)
	m.mu.Unlock()
	return m.detachDataDisksFunc(ctx, vmName, dsPaths)
}

func (m *mockHypervisor) Destroy(ctx context.Context, vmName string) error {
	m.mu.Lock()
	m.destroyCalls = append(m.destroyCalls, vmName)
	m.mu.Unlock()
	return m.destroyFunc(ctx, vmName)
}

func (m *mockHypervisor) Info(ctx context.Context, vmName string) (*vsphere.VMInfo, error) {
	m.mu.Lock()
	m.infoCalls = append(m.infoCalls, vmName)
	m.mu.Unlock()
	return m.infoFunc(ctx, vmName)
}

// mockImageSource is a mock implementation of the imageSource interface
// for testing.
type mockImageSource struct {
	mu sync.Mutex

	// Configurable behavior
	ensureSigningKeyFunc func(ctx context.Context) (string, error)
	fetchManifestFunc    func(ctx context.Context, streamName string) (*stream.Release, error)
	fetchFunc            func(ctx context.Context, rel *stream.Release, keyringPath string) (string, error)

	// Call tracking
	ensureSigningKeyCalls int
	fetchManifestCalls    []string
	fetchCalls            []string // release versions
}

// newMockImageSource creates a mock image source resolving a fixed release.
func newMockImageSource() *mockImageSource {
	return &mockImageSource{
		ensureSigningKeyFunc: func(ctx context.Context) (string, error) {
			return "/downloads/fedora.gpg", nil
		},
		fetchManifestFunc: func(ctx context.Context, streamName string) (*stream.Release, error) {
			return &stream.Release{
				Stream:       streamName,
				Version:      "42.20250803.3.0",
				Location:     "https://example.com/image.ova",
				SignatureURL: "https://example.com/image.ova.sig",
				SHA256:       "abc123",
			}, nil
		},
		fetchFunc: func(ctx context.Context, rel *stream.Release, keyringPath string) (string, error) {
			return fmt.Sprintf("/downloads/coreos-%s-%s.ova", rel.Stream, rel.Version), nil
		},
	}
}

func (m *mockImageSource) EnsureSigningKey(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.ensureSigningKeyCalls++
	m.mu.Unlock()
	return m.ensureSigningKeyFunc(ctx)
}

func (m *mockImageSource) FetchManifest(ctx context.Context, streamName string) (*stream.Release, error) {
	m.mu.Lock()
	m.fetchManifestCalls = append(m.fetchManifestCalls, streamName)
	m.mu.Unlock()
	return m.fetchManifestFunc(ctx, streamName)
}

func (m *mockImageSource) Fetch(ctx context.Context, rel *stream.Release, keyringPath string) (string, error) {
	m.mu.Lock()
	m.fetchCalls = append(m.fetchCalls, rel.Version)
	m.mu.Unlock()
	return m.fetchFunc(ctx, rel, keyringPath)
}
