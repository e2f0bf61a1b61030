package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/remediation"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the instance that owns the target address",
	RunE:  runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	inv, err := newInventory(ctx, cfg)
	if err != nil {
		return err
	}

	locator := remediation.NewLocator(inv, cfg.Project, cfg.TargetAddress, cfg.ZoneConcurrency, nil)
	ref, err := locator.Locate(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-20s %s\n", "INSTANCE", "ZONE", "ADDRESS")
	fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-20s %s\n", ref.Name, ref.Zone, cfg.TargetAddress)
	return nil
}
