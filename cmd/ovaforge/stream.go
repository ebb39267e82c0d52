package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ovaforge/ovaforge/internal/stream"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Inspect CoreOS release streams",
}

var streamShowDownloadDir string

var streamShowCmd = &cobra.Command{
	Use:   "show <stream>",
	Short: "Show the current release of a stream",
	Long: `Fetch the stream manifest and show the current x86_64 VMware OVA
release: version, download location, signature URL, and checksum.

The manifest is cached as <stream>.json in the download directory.

Example:
  ovaforge stream show stable --download-dir ~/Downloads/coreos`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		streamName := args[0]

		dir := streamShowDownloadDir
		if dir == "" {
			dir = os.TempDir()
		}

		client := stream.NewClient(dir)
		rel, err := client.FetchManifest(context.Background(), streamName)
		if err != nil {
			return fmt.Errorf("failed to fetch stream %s: %w", streamName, err)
		}

		fmt.Printf("Stream:    %s\n", rel.Stream)
		fmt.Printf("Version:   %s\n", rel.Version)
		fmt.Printf("Location:  %s\n", rel.Location)
		fmt.Printf("Signature: %s\n", rel.SignatureURL)
		fmt.Printf("SHA256:    %s\n", rel.SHA256)
		return nil
	},
}

func init() {
	streamShowCmd.Flags().StringVar(&streamShowDownloadDir, "download-dir", "", "cache directory for the manifest (default: temp dir)")
	streamCmd.AddCommand(streamShowCmd)
}
