// Package remediation locates the instance behind a probed address, decides
// the corrective action from its live state, and carries the action out.
package remediation

import (
	"context"
	"time"

	"github.com/leonardo-meireles/vm-remediator/pkg/security"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("vm-remediator/remediation")

// InstanceRef identifies the instance a report resolved to.
type InstanceRef struct {
	Name string `json:"name"`
	Zone string `json:"zone"`
}

// State is a provider lifecycle status as reported, e.g. RUNNING.
type State string

const (
	StateRunning    State = "RUNNING"
	StateStopped    State = "STOPPED"
	StateTerminated State = "TERMINATED"
)

// Action is the control command chosen for a state.
type Action string

const (
	ActionReset Action = "reset"
	ActionStart Action = "start"
	ActionNone  Action = "none"
)

// Outcome is the terminal value of one remediation.
type Outcome struct {
	Instance       InstanceRef `json:"instance"`
	Action         Action      `json:"action"`
	Success        bool        `json:"success"`
	Detail         string      `json:"detail"`
	ObservedStatus string      `json:"observed_status,omitempty"`
	Operation      string      `json:"operation,omitempty"`
	DryRun         bool        `json:"dry_run,omitempty"`
}

// Remediator runs one validated report to completion.
type Remediator interface {
	Remediate(ctx context.Context, report security.Report) (*Outcome, error)
}

// Run is the record of one finished remediation attempt.
type Run struct {
	ID       string
	Signal   security.Signal
	Outcome  *Outcome
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Recorder persists finished runs. Implementations must not block the
// response on anything but their own write.
type Recorder interface {
	Record(ctx context.Context, run Run) error
}
