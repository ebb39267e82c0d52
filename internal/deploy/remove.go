package deploy

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ovaforge/ovaforge/internal/config"
	"github.com/ovaforge/ovaforge/internal/naming"
	"github.com/ovaforge/ovaforge/internal/output"
	"github.com/ovaforge/ovaforge/internal/vsphere"
)

// Remove plans and optionally executes the removal of a deployed VM.
//
// The plan (observed VM state plus the ordered destructive steps) is
// always printed first. Without --apply nothing else happens. With
// --apply the VM is powered off, the docker and data disks are detached
// first when --keep-data is set (their VMDKs stay on the datastore), and
// the VM object is destroyed.
func Remove(ctx context.Context, cfg *config.RemoveConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	creds := config.LoadCredentials()
	if err := creds.Validate(); err != nil {
		return err
	}

	log.Printf("Connecting to %s...", creds.URL)
	hv, err := vsphere.Connect(ctx, creds)
	if err != nil {
		return err
	}
	defer func() {
		if err := hv.Close(ctx); err != nil {
			log.Printf("Warning: failed to close vSphere session: %v", err)
		}
	}()

	return removeWithDeps(ctx, cfg, hv, os.Stdout)
}

// removeWithDeps runs the removal with injected dependencies. This allows
// for testing by accepting interfaces instead of concrete types.
func removeWithDeps(ctx context.Context, cfg *config.RemoveConfig, hv hypervisor, out io.Writer) error {
	instance := naming.InstanceName(cfg.Prefix, cfg.Name)

	plan, err := buildPlan(ctx, cfg, instance, hv)
	if err != nil {
		return err
	}

	formatter, err := output.NewFormatter(output.Options{Format: output.Format(cfg.Output)})
	if err != nil {
		return err
	}
	rendered, err := formatter.FormatPlan(plan)
	if err != nil {
		return err
	}
	if _, err := out.Write([]byte(rendered)); err != nil {
		return err
	}

	if !plan.Exists {
		return fmt.Errorf("VM '%s' not found", instance)
	}
	if !cfg.Apply {
		return nil
	}

	// Execute the plan in the order it was printed.
	if err := hv.PowerOff(ctx, instance); err != nil {
		return err
	}

	if cfg.KeepData {
		disks := []string{
			naming.DiskDocker(instance),
			naming.DiskData(instance),
		}
		if err := hv.DetachDataDisks(ctx, instance, disks); err != nil {
			return err
		}
	}

	if err := hv.Destroy(ctx, instance); err != nil {
		return err
	}

	log.Printf("VM '%s' removed successfully", instance)
	return nil
}

// buildPlan gathers the observed VM state and the destructive steps that
// --apply would run.
func buildPlan(ctx context.Context, cfg *config.RemoveConfig, instance string, hv hypervisor) (*output.Plan, error) {
	exists, err := hv.VMExists(ctx, instance)
	if err != nil {
		return nil, err
	}

	plan := &output.Plan{
		Instance: instance,
		Exists:   exists,
		Apply:    cfg.Apply,
	}
	if !exists {
		return plan, nil
	}

	info, err := hv.Info(ctx, instance)
	if err != nil {
		return nil, err
	}
	plan.VM = info

	plan.Actions = append(plan.Actions, fmt.Sprintf("power off %s", instance))
	if cfg.KeepData {
		plan.Actions = append(plan.Actions,
			fmt.Sprintf("detach %s (file kept)", naming.DiskDocker(instance)),
			fmt.Sprintf("detach %s (file kept)", naming.DiskData(instance)),
		)
	}
	plan.Actions = append(plan.Actions, fmt.Sprintf("destroy %s", instance))

	return plan, nil
}
