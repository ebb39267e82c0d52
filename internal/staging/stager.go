// Package staging manages the temporary provisioning material placed into
// the includes directory next to the Butane source: freshly generated SSH
// host keys, optional SSH certificates, the TLS certificate bundle, and
// shared Butane snippets.
//
// Everything staged is tracked so Cleanup can remove it again. Cleanup is
// best-effort and idempotent; the deploy command arranges for it to run on
// normal exit and on SIGINT/SIGTERM so secret material never outlives the
// process.
package staging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// IncludesDirName is the subdirectory of the provisioning tree that Butane
// local: references resolve against.
const IncludesDirName = "includes"

// CommonDirName is the sibling directory holding shared Butane snippets
// copied into includes for every deploy.
const CommonDirName = "common"

// hostKey tracks a generated host key pair so the signing step can issue
// certificates without re-reading the staged files.
type hostKey struct {
	// algo is the short algorithm name used in file names (ed25519, rsa).
	algo string
	pub  ssh.PublicKey
}

// Stager stages provisioning material into the includes directory of a
// provisioning tree and removes it again on Cleanup.
type Stager struct {
	// tree is the provisioning tree root (directory of the Butane source).
	tree string

	// instanceName is used for key comments and certificate principals.
	instanceName string

	staged   []string
	hostKeys []hostKey
}

// NewStager creates a stager for the provisioning tree containing the given
// Butane file. The includes directory is created if absent.
func NewStager(butaneFile, instanceName string) (*Stager, error) {
	tree := filepath.Dir(butaneFile)

	if err := os.MkdirAll(filepath.Join(tree, IncludesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create includes directory: %w", err)
	}

	return &Stager{tree: tree, instanceName: instanceName}, nil
}

// IncludesDir returns the absolute includes directory path.
func (s *Stager) IncludesDir() string {
	return filepath.Join(s.tree, IncludesDirName)
}

// Tree returns the provisioning tree root.
func (s *Stager) Tree() string {
	return s.tree
}

// track records a staged file for later cleanup.
func (s *Stager) track(path string) {
	s.staged = append(s.staged, path)
}

// Track registers an externally created file (such as the encoded Ignition
// artifact) for removal during Cleanup.
func (s *Stager) Track(path string) {
	s.track(path)
}

// StagedFiles returns the paths staged so far. Used by tests and by verbose
// output.
func (s *Stager) StagedFiles() []string {
	out := make([]string, len(s.staged))
	copy(out, s.staged)
	return out
}

// StageTLSCerts copies the TLS certificate bundle into includes under the
// conventional names tls.crt, tls.key, and ca.crt. Host-specific files
// ({name}.crt/{name}.key) take precedence over the generic names; the CA
// bundle is optional.
func (s *Stager) StageTLSCerts(certDir string) error {
	crt, err := firstExisting(
		filepath.Join(certDir, s.instanceName+".crt"),
		filepath.Join(certDir, "tls.crt"),
	)
	if err != nil {
		return fmt.Errorf("no TLS certificate for %s in %s: %w", s.instanceName, certDir, err)
	}
	key, err := firstExisting(
		filepath.Join(certDir, s.instanceName+".key"),
		filepath.Join(certDir, "tls.key"),
	)
	if err != nil {
		return fmt.Errorf("no TLS key for %s in %s: %w", s.instanceName, certDir, err)
	}

	if err := s.copyIn(crt, "tls.crt", 0o644); err != nil {
		return err
	}
	if err := s.copyIn(key, "tls.key", 0o600); err != nil {
		return err
	}

	// CA bundle is optional
	if ca, err := firstExisting(filepath.Join(certDir, "ca.crt")); err == nil {
		if err := s.copyIn(ca, "ca.crt", 0o644); err != nil {
			return err
		}
	}

	return nil
}

// StageCommonConfig copies every regular file from the provisioning tree's
// common/ directory into includes. A missing common directory is skipped.
func (s *Stager) StageCommonConfig() error {
	commonDir := filepath.Join(s.tree, CommonDirName)

	entries, err := os.ReadDir(commonDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("No %s directory, skipping shared config", CommonDirName)
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", commonDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.copyIn(filepath.Join(commonDir, entry.Name()), entry.Name(), 0o644); err != nil {
			return err
		}
	}

	return nil
}

// Cleanup removes every staged file. It is best-effort: failures are logged
// and the remaining files are still attempted. Safe to call more than once.
func (s *Stager) Cleanup() {
	if len(s.staged) == 0 {
		return
	}

	log.Printf("Cleaning up %d staged file(s)...", len(s.staged))
	for _, path := range s.staged {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: failed to remove %s: %v", path, err)
		}
	}
	s.staged = nil
}

// copyIn copies src into the includes directory under name and tracks it.
func (s *Stager) copyIn(src, name string, mode os.FileMode) error {
	dst := filepath.Join(s.IncludesDir(), name)

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	s.track(dst)

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return nil
}

// writeStaged writes data to a new file in includes and tracks it.
func (s *Stager) writeStaged(name string, data []byte, mode os.FileMode) error {
	dst := filepath.Join(s.IncludesDir(), name)
	if err := os.WriteFile(dst, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	s.track(dst)
	return nil
}

// firstExisting returns the first path that exists as a regular file.
func firstExisting(paths ...string) (string, error) {
	var lastErr error
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = os.ErrNotExist
	}
	return "", lastErr
}
