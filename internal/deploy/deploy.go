// Package deploy orchestrates the end-to-end VM lifecycle flows: deploy
// (stage → transpile → acquire → import → configure → power on) and
// remove (plan → power off → detach → destroy).
package deploy

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ovaforge/ovaforge/internal/config"
	"github.com/ovaforge/ovaforge/internal/ignition"
	"github.com/ovaforge/ovaforge/internal/image"
	"github.com/ovaforge/ovaforge/internal/naming"
	"github.com/ovaforge/ovaforge/internal/staging"
	"github.com/ovaforge/ovaforge/internal/stream"
	"github.com/ovaforge/ovaforge/internal/vsphere"
)

// defaultDataDiskGiB sizes the docker and data disks when resources.json
// does not say otherwise.
const defaultDataDiskGiB = 10

// releaseSource combines the stream metadata client and the image fetcher
// into the imageSource production implementation.
type releaseSource struct {
	stream  *stream.Client
	fetcher *image.Fetcher
}

func (r *releaseSource) EnsureSigningKey(ctx context.Context) (string, error) {
	return r.stream.EnsureSigningKey(ctx)
}

func (r *releaseSource) FetchManifest(ctx context.Context, streamName string) (*stream.Release, error) {
	return r.stream.FetchManifest(ctx, streamName)
}

func (r *releaseSource) Fetch(ctx context.Context, rel *stream.Release, keyringPath string) (string, error) {
	return r.fetcher.Fetch(ctx, rel, keyringPath)
}

// Deploy provisions a CoreOS VM from a Butane configuration.
//
// This orchestrates the entire deploy process:
//  1. Validate configuration and load hardware overrides
//  2. Stage host keys, certificates, and shared config into includes/
//  3. Transpile Butane to Ignition (staged files embed via local: refs)
//  4. Without the deploy flag: write the plaintext Ignition file and stop
//  5. Acquire and verify the CoreOS OVA (signature + checksum)
//  6. Ensure library and image item, deploy the VM, inject Ignition
//  7. Apply hardware overrides, ensure data disks, power on
//
// Staged secret material is removed again on every exit path.
func Deploy(ctx context.Context, cfg *config.DeployConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	instance := naming.InstanceName(cfg.Prefix, cfg.Name)

	// Hardware overrides load eagerly so a malformed resources.json fails
	// before anything is staged or downloaded.
	res, err := config.LoadResources(cfg.ButaneFile)
	if err != nil {
		return err
	}

	// Credentials are only needed when actually deploying, but they are
	// checked before any long download.
	var creds *config.Credentials
	if cfg.Deploy {
		creds = config.LoadCredentials()
		if err := creds.Validate(); err != nil {
			return err
		}
	}

	stager, err := staging.NewStager(cfg.ButaneFile, instance)
	if err != nil {
		return err
	}
	defer stager.Cleanup()

	encoded, err := stageAndTranspile(cfg, instance, stager)
	if err != nil {
		return err
	}
	if !cfg.Deploy {
		// Nothing touched the hypervisor; the plaintext Ignition file is
		// the deliverable.
		return nil
	}

	src := &releaseSource{
		stream:  stream.NewClient(cfg.DownloadDir),
		fetcher: image.NewFetcher(cfg.DownloadDir),
	}

	log.Printf("Connecting to %s...", creds.URL)
	hv, err := vsphere.Connect(ctx, creds)
	if err != nil {
		return err
	}
	defer func() {
		if err := hv.Close(ctx); err != nil {
			log.Printf("Warning: failed to close vSphere session: %v", err)
		}
	}()

	return deployWithDeps(ctx, cfg, instance, res, encoded, src, hv)
}

// stageAndTranspile stages the provisioning material and produces the
// encoded Ignition artifact. In non-deploy mode it writes the plaintext
// Ignition file instead and returns nil bytes.
func stageAndTranspile(cfg *config.DeployConfig, instance string, stager *staging.Stager) ([]byte, error) {
	log.Printf("Generating SSH host keys for %s...", instance)
	if err := stager.GenerateHostKeys(); err != nil {
		return nil, err
	}

	if cfg.HostSigningKey != "" {
		log.Printf("Signing host keys...")
		pw := cfg.HostSigningPassword
		if pw == "" {
			pw = os.Getenv("SIMPLE_CA_SSH_PASSWORD")
		}
		if err := stager.SignHostKeys(cfg.HostSigningKey, pw); err != nil {
			return nil, err
		}
	}

	if cfg.UserSigningKey != "" {
		log.Printf("Staging user CA public key...")
		if err := stager.StageUserCA(cfg.UserSigningKey); err != nil {
			return nil, err
		}
	}

	log.Printf("Staging TLS certificates...")
	if err := stager.StageTLSCerts(cfg.TLSCertDir); err != nil {
		return nil, err
	}

	log.Printf("Staging shared configuration...")
	if err := stager.StageCommonConfig(); err != nil {
		return nil, err
	}

	log.Printf("Transpiling %s...", cfg.ButaneFile)
	ign, err := ignition.Transpile(cfg.ButaneFile)
	if err != nil {
		return nil, err
	}

	if !cfg.Deploy {
		path, err := ignition.WritePlain(cfg.ButaneFile, cfg.Name, ign)
		if err != nil {
			return nil, err
		}
		log.Printf("Wrote %s (deploy flag not set, stopping here)", path)
		return nil, nil
	}

	encoded, err := ignition.Encode(ign)
	if err != nil {
		return nil, err
	}

	// The artifact embeds staged secrets, so it is cleaned up with them.
	artifact, err := ignition.WriteArtifact(cfg.ButaneFile, cfg.Name, encoded)
	if err != nil {
		return nil, err
	}
	stager.Track(artifact)

	return encoded, nil
}

// deployWithDeps runs the acquisition and hypervisor steps with injected
// dependencies. This allows for testing by accepting interfaces instead
// of concrete types.
func deployWithDeps(ctx context.Context, cfg *config.DeployConfig, instance string, res *config.Resources, encoded []byte, src imageSource, hv hypervisor) error {
	// Step 1: Acquire and verify the image. Any verification failure is
	// fatal before the first hypervisor mutation.
	keyring, err := src.EnsureSigningKey(ctx)
	if err != nil {
		return err
	}

	rel, err := src.FetchManifest(ctx, cfg.Stream)
	if err != nil {
		return err
	}
	log.Printf("Current %s release: %s", rel.Stream, rel.Version)

	ovaPath, err := src.Fetch(ctx, rel, keyring)
	if err != nil {
		return err
	}

	// Step 2: Check if the VM already exists
	log.Printf("Checking if VM '%s' already exists...", instance)
	exists, err := hv.VMExists(ctx, instance)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("VM '%s' already exists", instance)
	}

	// Step 3: Ensure the content library and image item
	if err := hv.EnsureLibrary(ctx, cfg.Library); err != nil {
		return err
	}

	itemName := naming.LibraryItemName(rel.Stream, rel.Version)
	hasItem, err := hv.HasLibraryItem(ctx, cfg.Library, itemName)
	if err != nil {
		return err
	}
	if hasItem {
		log.Printf("Library item %q already present, skipping import", itemName)
	} else {
		if err := hv.ImportOVA(ctx, cfg.Library, itemName, ovaPath); err != nil {
			return err
		}
	}

	// Step 4: Deploy the VM
	if err := hv.DeployFromLibrary(ctx, cfg.Library, itemName, instance); err != nil {
		return err
	}

	// Step 5: Inject the Ignition payload before first power-on
	log.Printf("Injecting Ignition configuration...")
	if err := hv.SetIgnition(ctx, instance, encoded); err != nil {
		return err
	}

	// Step 6: Hardware overrides
	dockerGiB := int64(defaultDataDiskGiB)
	dataGiB := int64(defaultDataDiskGiB)
	if res != nil {
		if err := hv.ApplyHardware(ctx, instance, res.CPUs, res.MemoryMiB); err != nil {
			return err
		}
		if err := hv.ExtendRootDisk(ctx, instance, res.Disks.RootGiB); err != nil {
			return err
		}
		if res.Disks.DockerGiB > 0 {
			dockerGiB = res.Disks.DockerGiB
		}
		if res.Disks.DataGiB > 0 {
			dataGiB = res.Disks.DataGiB
		}
	}

	// Step 7: Persistent data disks survive redeploys; an existing VMDK is
	// attached, not recreated.
	if _, err := hv.EnsureDataDisk(ctx, instance, naming.DiskDocker(instance), dockerGiB); err != nil {
		return err
	}
	if _, err := hv.EnsureDataDisk(ctx, instance, naming.DiskData(instance), dataGiB); err != nil {
		return err
	}

	// Step 8: Optional serial debug logger
	if cfg.Debug {
		if err := hv.AttachSerialLogger(ctx, instance, naming.SerialLogFile(instance)); err != nil {
			return err
		}
	}

	// Step 9: Power on
	if err := hv.PowerOn(ctx, instance); err != nil {
		return err
	}

	log.Printf("VM '%s' deployed successfully!", instance)
	return nil
}
