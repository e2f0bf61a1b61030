package db

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/remediation"
	_ "modernc.org/sqlite"
)

// Repository provides journal operations
type Repository struct {
	db *sql.DB
}

// NewRepository opens (and if needed creates) the journal at dbPath
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Writes come from concurrent webhook requests; a single connection
	// serializes them instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	slog.Info("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Record journals a finished run. It satisfies remediation.Recorder.
func (r *Repository) Record(ctx context.Context, run remediation.Run) error {
	entry := &Entry{
		RunID:        run.ID,
		Signal:       string(run.Signal.Kind),
		SignalReason: run.Signal.Reason,
		Action:       string(remediation.ActionNone),
		Result:       remediation.ResultLabel(run.Err),
		DurationMs:   run.Duration.Milliseconds(),
	}
	if o := run.Outcome; o != nil {
		entry.Instance = o.Instance.Name
		entry.Zone = o.Instance.Zone
		entry.ObservedStatus = o.ObservedStatus
		entry.Action = string(o.Action)
		entry.Success = o.Success
		entry.DryRun = o.DryRun
		entry.Operation = o.Operation
		entry.Detail = o.Detail
	} else if run.Err != nil {
		entry.Detail = run.Err.Error()
	}
	return r.Create(ctx, entry)
}

// Create inserts a new journal entry
func (r *Repository) Create(ctx context.Context, e *Entry) error {
	slog.Debug("database_create_entry", "run_id", e.RunID, "result", e.Result)

	query := `
		INSERT INTO remediations (run_id, signal, signal_reason, instance, zone, observed_status,
		                          action, result, success, dry_run, operation, detail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		e.RunID, e.Signal, e.SignalReason, e.Instance, e.Zone, e.ObservedStatus,
		e.Action, e.Result, e.Success, e.DryRun, e.Operation, e.Detail, e.DurationMs)
	if err != nil {
		slog.Error("database_insert_failed", "run_id", e.RunID, "error", err)
		return errors.Wrap(err, "failed to insert journal entry")
	}

	id, err := result.LastInsertId()
	if err != nil {
		slog.Error("database_last_insert_id_failed", "run_id", e.RunID, "error", err)
		return errors.Wrap(err, "failed to get last insert id")
	}
	e.ID = id

	slog.Info("database_entry_created", "run_id", e.RunID, "entry_id", e.ID, "result", e.Result)
	return nil
}

const selectColumns = `
	SELECT id, run_id, signal, signal_reason, instance, zone, observed_status,
	       action, result, success, dry_run, operation, detail, duration_ms, created_at
	FROM remediations`

// GetByRunID retrieves an entry by run ID
func (r *Repository) GetByRunID(ctx context.Context, runID string) (*Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE run_id = ?`, runID)
	if err != nil {
		slog.Error("database_query_failed", "run_id", runID, "error", err)
		return nil, errors.Wrap(err, "failed to query journal entry")
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		slog.Info("database_entry_not_found", "run_id", runID)
		return nil, nil // Not found
	}
	return entries[0], nil
}

// List retrieves the most recent entries, newest first. limit <= 0 means all.
func (r *Repository) List(ctx context.Context, limit int) ([]*Entry, error) {
	return r.list(ctx, "", limit)
}

// ListByInstance retrieves the most recent entries for one instance.
func (r *Repository) ListByInstance(ctx context.Context, instance string, limit int) ([]*Entry, error) {
	return r.list(ctx, instance, limit)
}

func (r *Repository) list(ctx context.Context, instance string, limit int) ([]*Entry, error) {
	slog.Debug("database_list_entries", "instance", instance, "limit", limit)

	query := selectColumns
	var args []any
	if instance != "" {
		query += ` WHERE instance = ?`
		args = append(args, instance)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list journal entries")
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	slog.Debug("database_list_complete", "entry_count", len(entries))
	return entries, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var reason, instance, zone, status, operation, detail sql.NullString

		err := rows.Scan(
			&e.ID, &e.RunID, &e.Signal, &reason, &instance, &zone, &status,
			&e.Action, &e.Result, &e.Success, &e.DryRun, &operation, &detail, &e.DurationMs, &e.CreatedAt)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}

		// Handle nullable fields
		e.SignalReason = reason.String
		e.Instance = instance.String
		e.Zone = zone.String
		e.ObservedStatus = status.String
		e.Operation = operation.String
		e.Detail = detail.String

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}
	return entries, nil
}

// Prune deletes entries beyond the newest keep rows.
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	slog.Info("database_prune", "keep", keep)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM remediations WHERE id NOT IN (SELECT id FROM remediations ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		slog.Error("database_prune_failed", "error", err)
		return 0, errors.Wrap(err, "failed to prune journal")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	slog.Info("database_pruned", "deleted", n)
	return n, nil
}
