package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeResources(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	buFile := filepath.Join(dir, "web.bu")
	if err := os.WriteFile(buFile, []byte("variant: fcos\n"), 0o644); err != nil {
		t.Fatalf("failed to write butane file: %v", err)
	}
	if content != "" {
		if err := os.WriteFile(filepath.Join(dir, ResourcesFileName), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write resources file: %v", err)
		}
	}
	return buFile
}

func TestLoadResourcesMissingFile(t *testing.T) {
	buFile := writeResources(t, "")

	res, err := LoadResources(buFile)
	if err != nil {
		t.Fatalf("missing resources.json should not be an error, got: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil resources for missing file, got %+v", res)
	}
}

func TestLoadResources(t *testing.T) {
	buFile := writeResources(t, `{
		"cpus": 4,
		"memory_mib": 8192,
		"disks": {"root_gib": 40, "docker_gib": 100, "data_gib": 200}
	}`)

	res, err := LoadResources(buFile)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if res.CPUs != 4 {
		t.Errorf("expected 4 cpus, got %d", res.CPUs)
	}
	if res.MemoryMiB != 8192 {
		t.Errorf("expected 8192 MiB, got %d", res.MemoryMiB)
	}
	if res.Disks.RootGiB != 40 || res.Disks.DockerGiB != 100 || res.Disks.DataGiB != 200 {
		t.Errorf("unexpected disk sizes: %+v", res.Disks)
	}
}

func TestLoadResourcesPartial(t *testing.T) {
	buFile := writeResources(t, `{"memory_mib": 4096}`)

	res, err := LoadResources(buFile)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if res.CPUs != 0 {
		t.Errorf("expected unset cpus to be 0, got %d", res.CPUs)
	}
	if res.MemoryMiB != 4096 {
		t.Errorf("expected 4096 MiB, got %d", res.MemoryMiB)
	}
}

func TestLoadResourcesMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"cpus": }`},
		{"negative cpus", `{"cpus": -1}`},
		{"negative disk", `{"disks": {"root_gib": -5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buFile := writeResources(t, tt.content)
			if _, err := LoadResources(buFile); err == nil {
				t.Error("expected error for malformed resources.json, got nil")
			}
		})
	}
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr string
	}{
		{"complete", Credentials{URL: "vc.example.com", Username: "admin", Password: "s3cret"}, ""},
		{"missing url", Credentials{Username: "admin", Password: "s3cret"}, "GOVC_URL"},
		{"missing username", Credentials{URL: "vc.example.com", Password: "s3cret"}, "GOVC_USERNAME"},
		{"missing password", Credentials{URL: "vc.example.com", Username: "admin"}, "GOVC_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
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

func TestCredentialsEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
	}{
		{"bare host", "vc.example.com", "vc.example.com"},
		{"host with port", "vc.example.com:443", "vc.example.com:443"},
		{"full url", "https://vc.example.com/sdk", "vc.example.com"},
		{"url without path", "https://vc.example.com", "vc.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := Credentials{URL: tt.url, Username: "admin", Password: "pw"}
			u, err := creds.Endpoint()
			if err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}
			if u.Scheme != "https" {
				t.Errorf("Endpoint(%q) scheme = %q, want https", tt.url, u.Scheme)
			}
			if u.Host != tt.wantHost || u.Path != "/sdk" {
				t.Errorf("Endpoint(%q) = %q, want host %q path /sdk", tt.url, u.String(), tt.wantHost)
			}
			if u.User == nil {
				t.Fatal("expected userinfo to be set")
			}
			if name := u.User.Username(); name != "admin" {
				t.Errorf("expected username 'admin', got %q", name)
			}
		})
	}
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	t.Setenv("GOVC_URL", "vc.test.local")
	t.Setenv("GOVC_USERNAME", "operator")
	t.Setenv("GOVC_PASSWORD", "hunter2")
	t.Setenv("GOVC_TLS_CA_CERTS", "/tmp/ca.pem")
	t.Setenv("SIMPLE_CA_SSH_PASSWORD", "capw")

	creds := LoadCredentials()
	if creds.URL != "vc.test.local" {
		t.Errorf("expected URL from env, got %q", creds.URL)
	}
	if creds.Username != "operator" || creds.Password != "hunter2" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
	if creds.TLSCACerts != "/tmp/ca.pem" {
		t.Errorf("expected TLS CA path from env, got %q", creds.TLSCACerts)
	}
	if creds.SSHCAPassword != "capw" {
		t.Errorf("expected SSH CA password from env, got %q", creds.SSHCAPassword)
	}
}
