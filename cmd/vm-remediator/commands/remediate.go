package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/security"
	"github.com/spf13/cobra"
)

var (
	remediateSignal string
	remediateDryRun bool
)

var remediateCmd = &cobra.Command{
	Use:   "remediate",
	Short: "Run one remediation locally, as if a probe had reported",
	Long: `Runs the same locate, inspect and act steps as the webhook, without the
secret check. With --dry-run the action is decided and printed but not sent.`,
	RunE: runRemediate,
}

func init() {
	rootCmd.AddCommand(remediateCmd)
	remediateCmd.Flags().StringVar(&remediateSignal, "signal", security.StateNotResponding, "Reported response state")
	remediateCmd.Flags().BoolVar(&remediateDryRun, "dry-run", false, "Decide the action but do not send it")
}

func runRemediate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	signal, err := security.ClassifySignal(remediateSignal)
	if err != nil {
		return err
	}

	st, err := buildStack(ctx, cfg, remediateDryRun, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	out, runErr := st.remediator.Remediate(ctx, security.Report{Signal: signal})
	if out != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, "encode outcome failed")
		}
	}
	if runErr != nil {
		return fmt.Errorf("remediation failed (%s): %w", errors.KindOf(runErr), runErr)
	}
	return nil
}
