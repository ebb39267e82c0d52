// Package ignition transpiles Butane sources into Ignition configurations
// and produces the encoded artifact injected through the hypervisor's
// guestinfo channel.
//
// Transpilation happens in-process with the butane library. The includes
// directory staged next to the Butane source resolves local: file
// references, so the staged host keys and certificates end up embedded in
// the Ignition document.
package ignition

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	butaneconfig "github.com/coreos/butane/config"
	butanecommon "github.com/coreos/butane/config/common"

	"github.com/ovaforge/ovaforge/internal/naming"
)

// Transpile converts the Butane file into a raw Ignition JSON document.
// Local file references resolve against the provisioning tree (the Butane
// file's directory). Warnings are logged; errors are fatal.
func Transpile(butaneFile string) ([]byte, error) {
	data, err := os.ReadFile(butaneFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read butane file: %w", err)
	}

	opts := butanecommon.TranslateBytesOptions{
		Raw: true,
		TranslateOptions: butanecommon.TranslateOptions{
			FilesDir: filepath.Dir(butaneFile),
		},
	}

	ign, report, err := butaneconfig.TranslateBytes(data, opts)
	if err != nil {
		return nil, fmt.Errorf("butane transpilation failed: %w", err)
	}
	if str := report.String(); str != "" {
		log.Printf("Butane warnings:\n%s", str)
	}

	return ign, nil
}

// Encode compresses and base64-encodes an Ignition document into the form
// expected by the guestinfo.ignition.config.data channel with encoding
// gzip+base64.
func Encode(ign []byte) ([]byte, error) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(ign); err != nil {
		return nil, fmt.Errorf("failed to compress ignition config: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress ignition config: %w", err)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(compressed.Len()))
	base64.StdEncoding.Encode(encoded, compressed.Bytes())
	return encoded, nil
}

// Decode reverses Encode. Used to verify artifacts and by tests.
func Decode(encoded []byte) ([]byte, error) {
	compressed := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(compressed, encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to base64-decode ignition artifact: %w", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed[:n]))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress ignition artifact: %w", err)
	}
	defer func() {
		_ = gz.Close()
	}()

	ign, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress ignition artifact: %w", err)
	}
	return ign, nil
}

// WriteArtifact writes the encoded deploy artifact ({name}.ign.gzip.b64)
// next to the Butane source and returns its path. The artifact embeds
// staged secrets, so callers register it for cleanup.
func WriteArtifact(butaneFile, name string, encoded []byte) (string, error) {
	path := filepath.Join(filepath.Dir(butaneFile), naming.IgnitionArtifact(name))
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return "", fmt.Errorf("failed to write ignition artifact: %w", err)
	}
	return path, nil
}

// WritePlain writes the plaintext Ignition document ({name}.ign.json) next
// to the Butane source for inspection in non-deploy mode, and returns its
// path. Unlike the encoded artifact this file is meant to be looked at
// after the run, so it is not registered for cleanup.
func WritePlain(butaneFile, name string, ign []byte) (string, error) {
	path := filepath.Join(filepath.Dir(butaneFile), naming.IgnitionPlain(name))
	if err := os.WriteFile(path, ign, 0o600); err != nil {
		return "", fmt.Errorf("failed to write ignition file: %w", err)
	}
	return path, nil
}
