package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leonardo-meireles/vm-remediator/internal/config"
	"github.com/leonardo-meireles/vm-remediator/internal/logging"
	"github.com/leonardo-meireles/vm-remediator/pkg/db"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	appfsm "github.com/leonardo-meireles/vm-remediator/pkg/fsm"
	"github.com/leonardo-meireles/vm-remediator/pkg/inventory"
	"github.com/leonardo-meireles/vm-remediator/pkg/metrics"
	"github.com/leonardo-meireles/vm-remediator/pkg/remediation"
)

// loadConfig loads configuration and installs the configured logger on w.
func loadConfig(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	slog.SetDefault(logging.New(w, cfg.LogLevel, cfg.LogFormat))
	return cfg, nil
}

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(journalPath, fsmDBPath string) error {
	// Create journal directory
	if journalPath != "" {
		if err := os.MkdirAll(filepath.Dir(journalPath), 0755); err != nil {
			return errors.Wrap(err, "failed to create journal directory")
		}
	}

	// Create FSM database directory (only needed for durable runs)
	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	return nil
}

// newInventory returns the static inventory when a file is configured and
// the cloud API client otherwise.
func newInventory(ctx context.Context, cfg *config.Config) (inventory.Client, error) {
	if cfg.InventoryFile != "" {
		inv, err := inventory.LoadStatic(cfg.InventoryFile)
		if err != nil {
			return nil, errors.Wrap(err, "static inventory failed")
		}
		return inv, nil
	}
	client, err := inventory.NewGCE(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, errors.Wrap(err, "compute client failed")
	}
	return client, nil
}

// openJournal opens the journal when journal-path is set. A nil repository
// means journaling is off.
func openJournal(cfg *config.Config) (*db.Repository, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}
	repo, err := db.NewRepository(cfg.JournalPath)
	if err != nil {
		return nil, errors.Wrap(err, "journal init failed")
	}
	return repo, nil
}

// stack is everything a remediation needs, plus how to release it.
type stack struct {
	workflow   *remediation.Workflow
	remediator remediation.Remediator
	closers    []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildStack wires inventory, journal and driver. The durable FSM driver is
// used when fsm-db-path is set.
func buildStack(ctx context.Context, cfg *config.Config, dryRun bool, m *metrics.Metrics) (*stack, error) {
	if err := ensureDirectories(cfg.JournalPath, cfg.FSMDBPath); err != nil {
		return nil, err
	}

	inv, err := newInventory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &stack{}

	repo, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}
	var recorder remediation.Recorder
	if repo != nil {
		recorder = repo
		s.closers = append(s.closers, func() { repo.Close() })
	}

	s.workflow = remediation.NewWorkflow(
		remediation.NewLocator(inv, cfg.Project, cfg.TargetAddress, cfg.ZoneConcurrency, m),
		remediation.NewExecutor(inv, cfg.Project, dryRun, m),
		recorder,
		m,
	)
	s.remediator = s.workflow

	if cfg.FSMDBPath != "" {
		runner, err := appfsm.NewRunner(ctx, cfg.FSMDBPath, s.workflow)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.remediator = runner
		s.closers = append(s.closers, runner.Close)
	}

	slog.Info("remediator_ready",
		"project", cfg.Project,
		"target_address", cfg.TargetAddress,
		"static_inventory", cfg.InventoryFile != "",
		"durable", cfg.FSMDBPath != "",
		"journal", cfg.JournalPath != "",
		"dry_run", dryRun,
	)
	return s, nil
}
