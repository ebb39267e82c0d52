// Package stream acquires CoreOS release metadata: the Fedora signing key
// and the per-stream manifest describing the current release artifacts.
//
// The signing key is cached by existence in the download directory
// (fedora.asc armored, fedora.gpg dearmored); the stream manifest is
// re-downloaded on every run but kept on disk as {stream}.json for
// inspection.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/coreos/stream-metadata-go/fedoracoreos"
	coreosstream "github.com/coreos/stream-metadata-go/stream"

	"github.com/ovaforge/ovaforge/internal/naming"
)

// DefaultSigningKeyURL is where the Fedora signing key bundle is published.
// The file is ASCII-armored despite its extension.
const DefaultSigningKeyURL = "https://fedoraproject.org/fedora.gpg"

const (
	armoredKeyFile   = "fedora.asc"
	dearmoredKeyFile = "fedora.gpg"
)

// Release describes the resolved OVA artifact of a stream's current release.
type Release struct {
	Stream       string
	Version      string
	Location     string
	SignatureURL string
	SHA256       string
}

// Client downloads stream metadata into a cache directory.
type Client struct {
	// HTTPClient is used for all downloads. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// DownloadDir is the cache directory for manifests and keys.
	DownloadDir string

	// SigningKeyURL overrides DefaultSigningKeyURL (tests).
	SigningKeyURL string

	// StreamURL returns the manifest URL for a stream name. Defaults to the
	// official fedoracoreos stream endpoint.
	StreamURL func(stream string) string
}

// NewClient creates a stream client caching into downloadDir.
func NewClient(downloadDir string) *Client {
	return &Client{
		HTTPClient:    http.DefaultClient,
		DownloadDir:   downloadDir,
		SigningKeyURL: DefaultSigningKeyURL,
		StreamURL: func(stream string) string {
			u := fedoracoreos.GetStreamURL(stream)
			return u.String()
		},
	}
}

// EnsureSigningKey downloads and dearmors the Fedora signing key, skipping
// each step when its output file already exists. Returns the path of the
// dearmored binary keyring.
func (c *Client) EnsureSigningKey(ctx context.Context) (string, error) {
	armored := filepath.Join(c.DownloadDir, armoredKeyFile)
	dearmored := filepath.Join(c.DownloadDir, dearmoredKeyFile)

	if _, err := os.Stat(armored); os.IsNotExist(err) {
		log.Printf("Downloading signing key from %s...", c.SigningKeyURL)
		if err := c.download(ctx, c.SigningKeyURL, armored); err != nil {
			return "", fmt.Errorf("failed to download signing key: %w", err)
		}
	} else if err == nil {
		log.Printf("Signing key %s already present, skipping download", armoredKeyFile)
	} else {
		return "", fmt.Errorf("failed to probe signing key cache: %w", err)
	}

	if _, err := os.Stat(dearmored); os.IsNotExist(err) {
		if err := dearmor(armored, dearmored); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to probe keyring cache: %w", err)
	}

	return dearmored, nil
}

// FetchManifest downloads the stream manifest, caches it as {stream}.json,
// and resolves the x86_64 VMware OVA artifact. The manifest is always
// re-downloaded so a new release is picked up immediately.
func (c *Client) FetchManifest(ctx context.Context, streamName string) (*Release, error) {
	url := c.StreamURL(streamName)
	cachePath := filepath.Join(c.DownloadDir, naming.StreamFileName(streamName))

	log.Printf("Fetching stream manifest for %q...", streamName)
	if err := c.download(ctx, url, cachePath); err != nil {
		return nil, fmt.Errorf("failed to download stream manifest: %w", err)
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream manifest: %w", err)
	}

	return resolveOVA(streamName, data)
}

// resolveOVA extracts the x86_64 VMware OVA artifact from a raw manifest.
func resolveOVA(streamName string, data []byte) (*Release, error) {
	var st coreosstream.Stream
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse stream manifest: %w", err)
	}

	arch, ok := st.Architectures["x86_64"]
	if !ok {
		return nil, fmt.Errorf("stream %s has no x86_64 architecture", streamName)
	}
	vmware, ok := arch.Artifacts["vmware"]
	if !ok {
		return nil, fmt.Errorf("stream %s has no vmware artifacts", streamName)
	}
	format, ok := vmware.Formats["ova"]
	if !ok || format.Disk == nil {
		return nil, fmt.Errorf("stream %s has no ova format", streamName)
	}

	disk := format.Disk
	if disk.Location == "" || disk.Signature == "" || disk.Sha256 == "" {
		return nil, fmt.Errorf("stream %s ova artifact is incomplete", streamName)
	}

	return &Release{
		Stream:       streamName,
		Version:      vmware.Release,
		Location:     disk.Location,
		SignatureURL: disk.Signature,
		SHA256:       disk.Sha256,
	}, nil
}

// dearmor converts the armored key bundle into a binary keyring.
func dearmor(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read armored key: %w", err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse armored key: %w", err)
	}

	var buf bytes.Buffer
	for _, entity := range entities {
		if err := entity.Serialize(&buf); err != nil {
			return fmt.Errorf("failed to serialize key: %w", err)
		}
	}

	if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	log.Printf("Dearmored signing key to %s", filepath.Base(dst))
	return nil
}

// download fetches url into path.
func (c *Client) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
