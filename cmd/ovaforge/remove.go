package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ovaforge/ovaforge/internal/config"
	"github.com/ovaforge/ovaforge/internal/deploy"
	"github.com/ovaforge/ovaforge/internal/output"
)

var removeCfg config.RemoveConfig

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a deployed VM",
	Long: `Remove a deployed CoreOS virtual machine.

The planned actions and the observed VM state are always printed first.
Without --apply this is all that happens: the command is a dry-run and
performs no destructive operation.

With --apply the VM is powered off and destroyed. With --keep-data the
docker and data disks are detached before destruction so their VMDK files
stay on the datastore and are re-attached by the next deploy under the
same name.

Output formats:
  -o table  Human-readable plan (default)
  -o yaml   Plan as YAML
  -o json   Plan as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		removeCfg.Normalize()
		setupLogging(removeCfg.Verbose)
		if err := output.ValidateFormat(removeCfg.Output); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := deploy.Remove(ctx, &removeCfg); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		return nil
	},
}

func init() {
	f := removeCmd.Flags()
	f.StringVar(&removeCfg.Name, "name", "", "VM name (required)")
	f.StringVar(&removeCfg.Prefix, "prefix", "", "instance name prefix used at deploy time")
	f.BoolVar(&removeCfg.Apply, "apply", false, "execute the plan instead of printing it")
	f.BoolVar(&removeCfg.KeepData, "keep-data", false, "detach the docker and data disks instead of destroying them")
	f.StringVarP(&removeCfg.Output, "output", "o", "table", "plan output format (table, yaml, json)")
	f.BoolVarP(&removeCfg.Verbose, "verbose", "v", false, "verbose progress output")

	_ = removeCmd.MarkFlagRequired("name")
}
