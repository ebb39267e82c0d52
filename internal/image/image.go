// Package image downloads and verifies CoreOS OVA images.
//
// Downloads are cached by existence under a versioned file name, so
// re-running a deploy with an already-fetched release performs no network
// transfer. Verification (detached OpenPGP signature plus sha256 digest)
// runs on every invocation, cached or not; any mismatch is fatal before a
// single hypervisor call is made.
package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/ovaforge/ovaforge/internal/naming"
	"github.com/ovaforge/ovaforge/internal/stream"
)

// Fetcher downloads OVA images into a cache directory.
type Fetcher struct {
	// HTTPClient is used for downloads. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// DownloadDir is the image cache directory.
	DownloadDir string
}

// NewFetcher creates a fetcher caching into downloadDir.
func NewFetcher(downloadDir string) *Fetcher {
	return &Fetcher{
		HTTPClient:  http.DefaultClient,
		DownloadDir: downloadDir,
	}
}

// Fetch downloads the release's OVA and detached signature unless the
// versioned files already exist, then verifies both signature and checksum.
// Returns the local OVA path.
func (f *Fetcher) Fetch(ctx context.Context, rel *stream.Release, keyringPath string) (string, error) {
	ovaPath := filepath.Join(f.DownloadDir, naming.OVAFileName(rel.Stream, rel.Version))
	sigPath := filepath.Join(f.DownloadDir, naming.SignatureFileName(rel.Stream, rel.Version))

	if err := f.downloadIfAbsent(ctx, rel.Location, ovaPath); err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	if err := f.downloadIfAbsent(ctx, rel.SignatureURL, sigPath); err != nil {
		return "", fmt.Errorf("failed to download signature: %w", err)
	}

	if err := VerifySignature(ovaPath, sigPath, keyringPath); err != nil {
		return "", err
	}
	if err := VerifyChecksum(ovaPath, rel.SHA256); err != nil {
		return "", err
	}

	return ovaPath, nil
}

// downloadIfAbsent fetches url into path unless path already exists.
// A partial download never leaves a file under the final name.
func (f *Fetcher) downloadIfAbsent(ctx context.Context, url, path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Printf("%s already present, skipping download", filepath.Base(path))
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	log.Printf("Downloading %s...", filepath.Base(path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	tmp := path + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// VerifySignature checks the detached OpenPGP signature of the image
// against the binary keyring.
func VerifySignature(imagePath, sigPath, keyringPath string) error {
	keyringFile, err := os.Open(keyringPath)
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	defer func() {
		_ = keyringFile.Close()
	}()

	keyring, err := openpgp.ReadKeyRing(keyringFile)
	if err != nil {
		return fmt.Errorf("failed to parse keyring: %w", err)
	}

	image, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		_ = image.Close()
	}()

	sig, err := os.Open(sigPath)
	if err != nil {
		return fmt.Errorf("failed to open signature: %w", err)
	}
	defer func() {
		_ = sig.Close()
	}()

	signer, err := openpgp.CheckDetachedSignature(keyring, image, sig, nil)
	if err != nil {
		return fmt.Errorf("signature verification failed for %s: %w", filepath.Base(imagePath), err)
	}

	for id := range signer.Identities {
		log.Printf("Good signature from %q", id)
		break
	}
	return nil
}

// VerifyChecksum compares the image's sha256 digest against the expected
// hex value from the stream manifest.
func VerifyChecksum(imagePath, expected string) error {
	image, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		_ = image.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, image); err != nil {
		return fmt.Errorf("failed to hash image: %w", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if actual != expected {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s",
			filepath.Base(imagePath), expected, actual)
	}

	log.Printf("Checksum verified for %s", filepath.Base(imagePath))
	return nil
}
