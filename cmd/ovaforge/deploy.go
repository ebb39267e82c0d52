package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ovaforge/ovaforge/internal/config"
	"github.com/ovaforge/ovaforge/internal/deploy"
)

var deployCfg config.DeployConfig

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a CoreOS VM from a Butane configuration",
	Long: `Deploy a Fedora CoreOS virtual machine from a Butane configuration.

Fresh SSH host keys are generated into the includes directory next to the
Butane source (and signed when a host signing key is given), TLS
certificates and shared config are staged there, and the Butane file is
transpiled to Ignition with the staged files embedded. All staged secret
material is removed again when the command exits, on success, failure, or
interrupt.

Without --deploy the command stops after writing <name>.ign.json for
inspection; nothing is downloaded and the hypervisor is not contacted.

With --deploy the CoreOS OVA of the requested stream is downloaded (cached
by version), its GPG signature and sha256 checksum are verified on every
run, the image is imported into the content library if absent, and the VM
is deployed, configured, and powered on. Hardware overrides come from an
optional resources.json next to the Butane file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deployCfg.Normalize()
		setupLogging(deployCfg.Verbose)

		// SIGINT/SIGTERM cancel the context; in-flight operations fail and
		// the staged-secret cleanup still runs.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := deploy.Deploy(ctx, &deployCfg); err != nil {
			return fmt.Errorf("deploy failed: %w", err)
		}
		return nil
	},
}

func init() {
	f := deployCmd.Flags()
	f.StringVar(&deployCfg.Name, "name", "", "VM name (required)")
	f.StringVar(&deployCfg.ButaneFile, "bu-file", "", "Butane configuration file (required)")
	f.StringVar(&deployCfg.DownloadDir, "download-dir", "", "cache directory for images and stream metadata (required with --deploy)")
	f.StringVar(&deployCfg.TLSCertDir, "tls-certs", "", "directory with the TLS certificate bundle (required)")
	f.StringVar(&deployCfg.HostSigningKey, "host-signing-key", "", "SSH CA private key for host certificates")
	f.StringVar(&deployCfg.HostSigningPassword, "host-signing-pw", "", "passphrase for the host signing key (default: SIMPLE_CA_SSH_PASSWORD)")
	f.StringVar(&deployCfg.UserSigningKey, "user-signing-key", "", "SSH user CA whose public key is staged as trusted")
	f.StringVar(&deployCfg.Library, "library", config.DefaultLibrary, "vSphere content library for imported images")
	f.StringVar(&deployCfg.Prefix, "prefix", "", "instance name prefix")
	f.StringVar(&deployCfg.Stream, "stream", config.DefaultStream, "CoreOS release stream (stable, testing, next)")
	f.BoolVar(&deployCfg.Deploy, "deploy", false, "actually deploy; without it only the Ignition file is written")
	f.BoolVar(&deployCfg.Debug, "debug", false, "attach a serial port logger to the VM")
	f.BoolVarP(&deployCfg.Verbose, "verbose", "v", false, "verbose progress output")

	_ = deployCmd.MarkFlagRequired("name")
	_ = deployCmd.MarkFlagRequired("bu-file")
	_ = deployCmd.MarkFlagRequired("tls-certs")
}
