package fsm

import (
	"github.com/leonardo-meireles/vm-remediator/pkg/remediation"
	"github.com/leonardo-meireles/vm-remediator/pkg/security"
)

// RemediationRequest is the FSM input
type RemediationRequest struct {
	RunID  string
	Signal security.Signal
}

// RemediationResponse is the FSM output (accumulated across transitions)
type RemediationResponse struct {
	// From Locate
	Instance remediation.InstanceRef

	// From Inspect
	ObservedStatus string
	Action         string

	// From Act
	Success   bool
	Detail    string
	Operation string
	DryRun    bool
}

// State names
const (
	StateLocate   = "locate"
	StateInspect  = "inspect"
	StateAct      = "act"
	StateComplete = "complete"
	StateFailed   = "failed"
)

// outcome converts the accumulated response into the caller-facing value.
func (r *RemediationResponse) outcome() *remediation.Outcome {
	return &remediation.Outcome{
		Instance:       r.Instance,
		Action:         remediation.Action(r.Action),
		Success:        r.Success,
		Detail:         r.Detail,
		ObservedStatus: r.ObservedStatus,
		Operation:      r.Operation,
		DryRun:         r.DryRun,
	}
}
