package db

// Schema defines the SQLite journal of remediation attempts. One row per
// run; instance and zone are empty when the locator found nothing.
const Schema = `
CREATE TABLE IF NOT EXISTS remediations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    signal TEXT NOT NULL,
    signal_reason TEXT,
    instance TEXT,
    zone TEXT,
    observed_status TEXT,
    action TEXT NOT NULL CHECK(action IN ('reset', 'start', 'none')),
    result TEXT NOT NULL,
    success INTEGER NOT NULL DEFAULT 0,
    dry_run INTEGER NOT NULL DEFAULT 0,
    operation TEXT,
    detail TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_remediations_instance ON remediations(instance);
CREATE INDEX IF NOT EXISTS idx_remediations_created_at ON remediations(created_at);
`

// Entry is one journaled remediation attempt.
type Entry struct {
	ID             int64  `json:"id" yaml:"id"`
	RunID          string `json:"run_id" yaml:"run_id"`
	Signal         string `json:"signal" yaml:"signal"`
	SignalReason   string `json:"signal_reason,omitempty" yaml:"signal_reason,omitempty"`
	Instance       string `json:"instance,omitempty" yaml:"instance,omitempty"`
	Zone           string `json:"zone,omitempty" yaml:"zone,omitempty"`
	ObservedStatus string `json:"observed_status,omitempty" yaml:"observed_status,omitempty"`
	Action         string `json:"action" yaml:"action"`
	Result         string `json:"result" yaml:"result"`
	Success        bool   `json:"success" yaml:"success"`
	DryRun         bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Operation      string `json:"operation,omitempty" yaml:"operation,omitempty"`
	Detail         string `json:"detail,omitempty" yaml:"detail,omitempty"`
	DurationMs     int64  `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt      string `json:"created_at" yaml:"created_at"`
}
