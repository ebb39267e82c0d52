// Package config defines the configuration surface of the deploy and remove
// flows: CLI-provided options, hypervisor credentials from the environment,
// and the optional resources.json hardware sizing file.
package config

import (
	"fmt"
	"os"
	"regexp"
)

// Default values applied by Normalize.
const (
	// DefaultStream is the CoreOS release stream used when none is given.
	DefaultStream = "stable"

	// DefaultLibrary is the content library images are imported into.
	DefaultLibrary = "fcos"
)

// namePattern matches valid VM names: must start and end with alphanumeric,
// may contain hyphens in between. Matches vSphere inventory name rules for
// the subset this tool generates.
var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// DeployConfig holds all parameters of a deploy invocation.
type DeployConfig struct {
	// Name is the logical VM name. The instance name in vSphere is
	// Prefix + "-" + Name when Prefix is set.
	Name string

	// ButaneFile is the path to the Butane source to transpile.
	ButaneFile string

	// DownloadDir is where stream manifests, signing keys, and OVA images
	// are cached between runs.
	DownloadDir string

	// TLSCertDir contains the TLS certificate bundle staged into the
	// includes directory (tls.crt, tls.key, ca.crt).
	TLSCertDir string

	// HostSigningKey is an optional SSH CA private key used to sign the
	// generated host keys. Empty disables host certificate issuance.
	HostSigningKey string

	// HostSigningPassword is the passphrase for HostSigningKey. When empty
	// the SIMPLE_CA_SSH_PASSWORD environment variable is consulted.
	HostSigningPassword string

	// UserSigningKey is an optional SSH user CA whose public half is staged
	// as the trusted user CA for the deployed host.
	UserSigningKey string

	// Library is the vSphere content library name for imported images.
	Library string

	// Prefix is an optional instance name prefix.
	Prefix string

	// Stream is the CoreOS release stream (stable, testing, next).
	Stream string

	// Deploy enables the network download/verification and hypervisor
	// calls. When false, only a plaintext Ignition file is written locally.
	Deploy bool

	// Debug attaches a serial port logger to the deployed VM.
	Debug bool

	// Verbose enables debug-level progress output.
	Verbose bool
}

// Normalize applies defaults to unset fields.
// This is called by the CLI layer before Validate.
func (c *DeployConfig) Normalize() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Library == "" {
		c.Library = DefaultLibrary
	}
}

// Validate checks the configuration eagerly, before any network or
// hypervisor call is made. It reports the first problem found.
func (c *DeployConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(c.Name) {
		return fmt.Errorf("name must be lowercase alphanumeric with interior hyphens, got %q", c.Name)
	}
	if c.Prefix != "" && !namePattern.MatchString(c.Prefix) {
		return fmt.Errorf("prefix must be lowercase alphanumeric with interior hyphens, got %q", c.Prefix)
	}

	if c.ButaneFile == "" {
		return fmt.Errorf("bu-file is required")
	}
	if err := fileExists(c.ButaneFile); err != nil {
		return fmt.Errorf("bu-file: %w", err)
	}

	if c.TLSCertDir == "" {
		return fmt.Errorf("tls-certs is required")
	}
	if err := dirExists(c.TLSCertDir); err != nil {
		return fmt.Errorf("tls-certs: %w", err)
	}

	if c.Deploy {
		if c.DownloadDir == "" {
			return fmt.Errorf("download-dir is required when deploying")
		}
		if err := dirExists(c.DownloadDir); err != nil {
			return fmt.Errorf("download-dir: %w", err)
		}
	}

	if c.HostSigningKey != "" {
		if err := fileExists(c.HostSigningKey); err != nil {
			return fmt.Errorf("host-signing-key: %w", err)
		}
	}
	if c.UserSigningKey != "" {
		if err := fileExists(c.UserSigningKey); err != nil {
			return fmt.Errorf("user-signing-key: %w", err)
		}
	}

	return nil
}

// RemoveConfig holds all parameters of a remove invocation.
type RemoveConfig struct {
	// Name is the logical VM name (without prefix).
	Name string

	// Prefix is the instance name prefix used at deploy time.
	Prefix string

	// Apply enables destructive operations. Without it, remove only prints
	// the plan.
	Apply bool

	// KeepData detaches the docker and data disks before destroying the VM
	// instead of letting them be destroyed with it.
	KeepData bool

	// Output selects the plan output format (table, yaml, json).
	Output string

	// Verbose enables debug-level progress output.
	Verbose bool
}

// Normalize applies defaults to unset fields.
func (c *RemoveConfig) Normalize() {
	if c.Output == "" {
		c.Output = "table"
	}
}

// Validate checks the configuration for errors.
func (c *RemoveConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(c.Name) {
		return fmt.Errorf("name must be lowercase alphanumeric with interior hyphens, got %q", c.Name)
	}
	switch c.Output {
	case "table", "yaml", "json":
	default:
		return fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", c.Output)
	}
	return nil
}

func fileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file", path)
	}
	return nil
}

func dirExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
