package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ovaforge",
	Short: "ovaforge - Fedora CoreOS deployment for vSphere",
	Long: `ovaforge deploys Fedora CoreOS virtual machines onto VMware vSphere.

It transpiles a Butane configuration into Ignition (embedding freshly
generated SSH host keys, optional SSH certificates, and TLS material),
downloads and verifies the CoreOS OVA for a release stream, imports it
into a content library, and deploys, configures, and powers on the VM.

Connection settings come from the govc-style environment variables
GOVC_URL, GOVC_USERNAME, GOVC_PASSWORD, and GOVC_TLS_CA_CERTS.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(streamCmd)
}

// setupLogging configures the progress log. Verbose mode adds timestamps
// with microsecond resolution; the default keeps plain step lines.
func setupLogging(verbose bool) {
	if verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		log.SetFlags(0)
	}
}
