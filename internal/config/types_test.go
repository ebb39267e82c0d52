package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testDeployConfig returns a valid deploy config backed by real temp files.
func testDeployConfig(t *testing.T) *DeployConfig {
	t.Helper()

	dir := t.TempDir()
	buFile := filepath.Join(dir, "web.bu")
	if err := os.WriteFile(buFile, []byte("variant: fcos\nversion: 1.5.0\n"), 0o644); err != nil {
		t.Fatalf("failed to write butane file: %v", err)
	}
	tlsDir := filepath.Join(dir, "certs")
	if err := os.Mkdir(tlsDir, 0o755); err != nil {
		t.Fatalf("failed to create tls dir: %v", err)
	}
	downloadDir := filepath.Join(dir, "downloads")
	if err := os.Mkdir(downloadDir, 0o755); err != nil {
		t.Fatalf("failed to create download dir: %v", err)
	}

	cfg := &DeployConfig{
		Name:        "web",
		ButaneFile:  buFile,
		DownloadDir: downloadDir,
		TLSCertDir:  tlsDir,
	}
	cfg.Normalize()
	return cfg
}

func TestDeployConfigNormalize(t *testing.T) {
	cfg := &DeployConfig{}
	cfg.Normalize()

	if cfg.Stream != "stable" {
		t.Errorf("expected default stream 'stable', got %q", cfg.Stream)
	}
	if cfg.Library != "fcos" {
		t.Errorf("expected default library 'fcos', got %q", cfg.Library)
	}

	// Explicit values are not overwritten
	cfg = &DeployConfig{Stream: "next", Library: "images"}
	cfg.Normalize()
	if cfg.Stream != "next" || cfg.Library != "images" {
		t.Errorf("Normalize overwrote explicit values: %+v", cfg)
	}
}

func TestDeployConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DeployConfig)
		wantErr string
	}{
		{"valid", func(c *DeployConfig) {}, ""},
		{"missing name", func(c *DeployConfig) { c.Name = "" }, "name is required"},
		{"invalid name", func(c *DeployConfig) { c.Name = "Web_1" }, "lowercase alphanumeric"},
		{"invalid prefix", func(c *DeployConfig) { c.Prefix = "-lab" }, "prefix"},
		{"missing bu-file", func(c *DeployConfig) { c.ButaneFile = "" }, "bu-file is required"},
		{"bu-file not found", func(c *DeployConfig) { c.ButaneFile = "/nonexistent/x.bu" }, "bu-file"},
		{"missing tls-certs", func(c *DeployConfig) { c.TLSCertDir = "" }, "tls-certs is required"},
		{"download dir optional without deploy", func(c *DeployConfig) { c.DownloadDir = "" }, ""},
		{"download dir required with deploy", func(c *DeployConfig) { c.DownloadDir = ""; c.Deploy = true }, "download-dir is required"},
		{"signing key not found", func(c *DeployConfig) { c.HostSigningKey = "/nonexistent/ca" }, "host-signing-key"},
		{"user key not found", func(c *DeployConfig) { c.UserSigningKey = "/nonexistent/ca" }, "user-signing-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testDeployConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected success, got error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestDeployConfigValidateButaneFileIsDir(t *testing.T) {
	cfg := testDeployConfig(t)
	cfg.ButaneFile = filepath.Dir(cfg.ButaneFile)

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("expected directory error, got %v", err)
	}
}

func TestRemoveConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RemoveConfig
		wantErr string
	}{
		{"valid defaults", RemoveConfig{Name: "web", Output: "table"}, ""},
		{"valid json output", RemoveConfig{Name: "web", Output: "json"}, ""},
		{"missing name", RemoveConfig{Output: "table"}, "name is required"},
		{"bad output", RemoveConfig{Name: "web", Output: "xml"}, "unsupported output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected success, got error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRemoveConfigNormalize(t *testing.T) {
	cfg := &RemoveConfig{Name: "web"}
	cfg.Normalize()
	if cfg.Output != "table" {
		t.Errorf("expected default output 'table', got %q", cfg.Output)
	}
}
