package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/leonardo-meireles/vm-remediator/internal/config"
	"github.com/leonardo-meireles/vm-remediator/pkg/db"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	journalOutput   string
	journalLimit    int
	journalInstance string
	journalKeep     int
	exportFormat    string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect and manage the remediation journal",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent remediation runs",
	RunE:  runJournalList,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	RunE:  runJournalPrune,
}

var journalExportCmd = &cobra.Command{
	Use:   "export <s3://bucket/prefix | gs://bucket/prefix>",
	Short: "Upload the journal to object storage",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalExport,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd, journalPruneCmd, journalExportCmd)

	journalListCmd.Flags().StringVarP(&journalOutput, "output", "o", "table", "Output format (table, json, yaml)")
	journalListCmd.Flags().IntVar(&journalLimit, "limit", 20, "Maximum runs to show (0 for all)")
	journalListCmd.Flags().StringVar(&journalInstance, "instance", "", "Only show runs for this instance")

	journalPruneCmd.Flags().IntVar(&journalKeep, "keep", 1000, "Number of newest runs to keep")

	journalExportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format (json, yaml)")
	journalExportCmd.Flags().String("archive-region", "us-east-1", "Region for S3 destinations")
	viper.BindPFlag("archive-region", journalExportCmd.Flags().Lookup("archive-region"))
}

// openExistingJournal opens the configured journal for the journal commands.
func openExistingJournal() (*config.Config, *db.Repository, error) {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	if cfg.JournalPath == "" {
		return nil, nil, fmt.Errorf("journal-path is not set")
	}
	if err := ensureDirectories(cfg.JournalPath, ""); err != nil {
		return nil, nil, err
	}
	repo, err := openJournal(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, repo, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	_, repo, err := openExistingJournal()
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	var entries []*db.Entry
	if journalInstance != "" {
		entries, err = repo.ListByInstance(ctx, journalInstance, journalLimit)
	} else {
		entries, err = repo.List(ctx, journalLimit)
	}
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	return writeEntries(cmd.OutOrStdout(), entries, journalOutput)
}

func runJournalPrune(cmd *cobra.Command, args []string) error {
	if journalKeep < 0 {
		return fmt.Errorf("--keep must be non-negative")
	}
	_, repo, err := openExistingJournal()
	if err != nil {
		return err
	}
	defer repo.Close()

	n, err := repo.Prune(context.Background(), journalKeep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s)\n", n)
	return nil
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if exportFormat != "json" && exportFormat != "yaml" {
		return fmt.Errorf("--format must be json or yaml")
	}

	cfg, repo, err := openExistingJournal()
	if err != nil {
		return err
	}
	defer repo.Close()

	entries, err := repo.List(ctx, 0)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	var buf bytes.Buffer
	if err := writeEntries(&buf, entries, exportFormat); err != nil {
		return err
	}

	archiver, err := storage.NewArchiver(ctx, args[0], cfg.ArchiveRegion)
	if err != nil {
		return err
	}
	defer archiver.Close()

	name := fmt.Sprintf("journal-%s.%s", time.Now().UTC().Format("20060102T150405Z"), exportFormat)
	dest, err := archiver.Upload(ctx, name, &buf)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d run(s) to %s\n", len(entries), dest)
	return nil
}

func writeEntries(w io.Writer, entries []*db.Entry, format string) error {
	switch format {
	case "json":
		if entries == nil {
			entries = []*db.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)

	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(entries)

	case "table":
		if len(entries) == 0 {
			fmt.Fprintln(w, "No remediation runs found")
			return nil
		}

		fmt.Fprintf(w, "%-20s %-25s %-16s %-12s %-6s %-18s %s\n", "TIME", "INSTANCE", "SIGNAL", "STATUS", "ACTION", "RESULT", "RUN")
		fmt.Fprintln(w, "--------------------------------------------------------------------------------------------------------------------")

		for _, e := range entries {
			instance := e.Instance
			if instance == "" {
				instance = "-"
			}
			status := e.ObservedStatus
			if status == "" {
				status = "-"
			}
			result := e.Result
			if e.DryRun {
				result += " (dry)"
			}
			fmt.Fprintf(w, "%-20s %-25s %-16s %-12s %-6s %-18s %s\n",
				e.CreatedAt, instance, e.Signal, status, e.Action, result, e.RunID)
		}
		return nil

	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}
