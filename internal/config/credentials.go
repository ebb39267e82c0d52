package config

import (
	"fmt"
	"net/url"

	"github.com/spf13/viper"
	"github.com/vmware/govmomi/vim25/soap"
)

// Credentials holds the hypervisor connection settings read from the
// environment. The variable names follow the govc CLI convention so existing
// operator environments work unchanged.
type Credentials struct {
	// URL is the vSphere endpoint (GOVC_URL), e.g. "vcenter.example.com"
	// or a full https URL.
	URL string

	// Username and Password authenticate the session (GOVC_USERNAME,
	// GOVC_PASSWORD).
	Username string
	Password string

	// TLSCACerts optionally points at a PEM bundle used to verify the
	// endpoint certificate (GOVC_TLS_CA_CERTS). When empty, the per-host
	// certificate under ~/.govmomi/certificates is tried.
	TLSCACerts string

	// SSHCAPassword is the passphrase for the SSH host signing key
	// (SIMPLE_CA_SSH_PASSWORD), used when no --host-signing-pw flag is given.
	SSHCAPassword string
}

// LoadCredentials reads hypervisor credentials from the environment.
// No validation happens here; call Validate once it is known that a
// hypervisor call will actually be made.
func LoadCredentials() *Credentials {
	v := viper.New()
	v.AutomaticEnv()

	// Explicit binding: these names are a fixed external contract, not
	// prefixed application settings.
	for _, key := range []string{
		"GOVC_URL",
		"GOVC_USERNAME",
		"GOVC_PASSWORD",
		"GOVC_TLS_CA_CERTS",
		"SIMPLE_CA_SSH_PASSWORD",
	} {
		_ = v.BindEnv(key)
	}

	return &Credentials{
		URL:           v.GetString("GOVC_URL"),
		Username:      v.GetString("GOVC_USERNAME"),
		Password:      v.GetString("GOVC_PASSWORD"),
		TLSCACerts:    v.GetString("GOVC_TLS_CA_CERTS"),
		SSHCAPassword: v.GetString("SIMPLE_CA_SSH_PASSWORD"),
	}
}

// Validate checks that everything needed to open a hypervisor session is
// present. Only called on paths that will talk to vSphere.
func (c *Credentials) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("GOVC_URL is not set")
	}
	if c.Username == "" {
		return fmt.Errorf("GOVC_USERNAME is not set")
	}
	if c.Password == "" {
		return fmt.Errorf("GOVC_PASSWORD is not set")
	}
	return nil
}

// Endpoint returns the SDK URL for the configured endpoint. Parsing
// follows the govc URL surface: bare host, host:port, and full URL forms
// all expand to the conventional https://{host}/sdk.
func (c *Credentials) Endpoint() (*url.URL, error) {
	u, err := soap.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid GOVC_URL %q: %w", c.URL, err)
	}
	if u == nil {
		return nil, fmt.Errorf("GOVC_URL is not set")
	}
	u.User = url.UserPassword(c.Username, c.Password)
	return u, nil
}
