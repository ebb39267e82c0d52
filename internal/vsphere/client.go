// Package vsphere wraps govmomi with the operations the deploy and remove
// flows need: session setup with the govc-compatible credential surface,
// content library image import, OVA deployment, guestinfo injection,
// hardware reconfiguration, persistent disk management, and power control.
//
// All operations address VMs by inventory name, mirroring the CLI surface.
// The deploy orchestration consumes this package through a narrow interface
// so tests never need a live vCenter.
package vsphere

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/vapi/rest"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"

	"github.com/ovaforge/ovaforge/internal/config"
)

// certDirName is the conventional per-host certificate location consulted
// when GOVC_TLS_CA_CERTS is unset: ~/.govmomi/certificates/{host}.pem
const certDirName = ".govmomi/certificates"

// Client is an authenticated vSphere session bound to the default
// datacenter and datastore of the endpoint.
type Client struct {
	vim  *vim25.Client
	rest *rest.Client

	sessionMgr *session.Manager
	finder     *find.Finder
	datacenter *object.Datacenter
	datastore  *object.Datastore
}

// Connect opens SOAP and REST sessions against the endpoint described by
// the credentials. TLS trust comes from GOVC_TLS_CA_CERTS when set,
// otherwise from the per-host certificate under ~/.govmomi/certificates;
// with neither present an unverifiable server certificate fails with
// remediation instructions.
func Connect(ctx context.Context, creds *config.Credentials) (*Client, error) {
	endpoint, err := creds.Endpoint()
	if err != nil {
		return nil, err
	}

	soapClient := soap.NewClient(endpoint, false)

	caFile := creds.TLSCACerts
	if caFile == "" {
		if perHost, err := hostCertPath(endpoint.Hostname()); err == nil {
			if _, statErr := os.Stat(perHost); statErr == nil {
				caFile = perHost
			}
		}
	}
	if caFile != "" {
		if err := soapClient.SetRootCAs(caFile); err != nil {
			return nil, fmt.Errorf("failed to load CA certificates from %s: %w", caFile, err)
		}
	}

	vimClient, err := vim25.NewClient(ctx, soapClient)
	if err != nil {
		if isUnknownAuthority(err) {
			return nil, untrustedCertError(endpoint.Hostname(), err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint.Host, err)
	}

	sessionMgr := session.NewManager(vimClient)
	if err := sessionMgr.Login(ctx, endpoint.User); err != nil {
		return nil, fmt.Errorf("failed to log in to %s: %w", endpoint.Host, err)
	}

	restClient := rest.NewClient(vimClient)
	if err := restClient.Login(ctx, endpoint.User); err != nil {
		_ = sessionMgr.Logout(ctx)
		return nil, fmt.Errorf("failed to log in to the REST endpoint: %w", err)
	}

	finder := find.NewFinder(vimClient, true)
	dc, err := finder.DefaultDatacenter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve datacenter: %w", err)
	}
	finder.SetDatacenter(dc)

	ds, err := finder.DefaultDatastore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve datastore: %w", err)
	}

	return &Client{
		vim:        vimClient,
		rest:       restClient,
		sessionMgr: sessionMgr,
		finder:     finder,
		datacenter: dc,
		datastore:  ds,
	}, nil
}

// Close logs out both sessions. Safe to call on a partially failed client.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.rest != nil {
		if err := c.rest.Logout(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rest logout: %w", err))
		}
	}
	if c.sessionMgr != nil {
		if err := c.sessionMgr.Logout(ctx); err != nil {
			errs = append(errs, fmt.Errorf("soap logout: %w", err))
		}
	}
	return errors.Join(errs...)
}

// VMExists probes for a VM by inventory name. A lookup miss is an expected
// branch, not an error.
func (c *Client) VMExists(ctx context.Context, name string) (bool, error) {
	_, err := c.finder.VirtualMachine(ctx, name)
	if err != nil {
		var notFound *find.NotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up VM %s: %w", name, err)
	}
	return true, nil
}

// vm resolves a VM by inventory name.
func (c *Client) vm(ctx context.Context, name string) (*object.VirtualMachine, error) {
	vm, err := c.finder.VirtualMachine(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("VM %s not found: %w", name, err)
	}
	return vm, nil
}

// hostCertPath returns the conventional per-host certificate path.
func hostCertPath(host string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, certDirName, host+".pem"), nil
}

// isUnknownAuthority reports whether err stems from an unverifiable server
// certificate.
func isUnknownAuthority(err error) bool {
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &authErr) {
		return true
	}
	var hostErr x509.HostnameError
	return errors.As(err, &hostErr)
}

// untrustedCertError explains how to establish trust for the endpoint.
func untrustedCertError(host string, err error) error {
	perHost := filepath.Join("~", certDirName, host+".pem")
	return fmt.Errorf(
		"the certificate of %s is not trusted: %w\n"+
			"Export the server certificate to %s or point GOVC_TLS_CA_CERTS at a CA bundle, e.g.:\n"+
			"  openssl s_client -connect %s:443 </dev/null 2>/dev/null | openssl x509 > %s",
		host, err, perHost, host, perHost)
}
