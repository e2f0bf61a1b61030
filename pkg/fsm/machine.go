// Package fsm runs remediations as durable state machine workflows.
// Each report becomes a run of locate, inspect, act and complete, persisted
// with the superfly/fsm library so every transition is recorded on disk.
package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/remediation"
	"github.com/leonardo-meireles/vm-remediator/pkg/security"
	"github.com/superfly/fsm"
)

// runResult is what the handlers leave behind for the waiting caller.
type runResult struct {
	outcome *remediation.Outcome
	err     error
}

// Runner is a remediation.Remediator backed by a superfly/fsm manager.
type Runner struct {
	workflow *remediation.Workflow
	manager  *fsm.Manager
	start    fsm.Start[RemediationRequest, RemediationResponse]

	// run ID -> *runResult
	results sync.Map
}

// NewRunner opens the FSM store at dbPath and registers the remediation
// machine. The workflow supplies the steps and the run bookkeeping.
func NewRunner(ctx context.Context, dbPath string, workflow *remediation.Workflow) (*Runner, error) {
	slog.Info("fsm_manager_init", "db_path", dbPath)

	manager, err := fsm.New(fsm.Config{DBPath: dbPath})
	if err != nil {
		return nil, errors.Wrap(err, "FSM manager failed")
	}

	r := &Runner{workflow: workflow, manager: manager}
	start, _, err := r.Register(ctx, manager)
	if err != nil {
		manager.Shutdown(10 * time.Second)
		return nil, err
	}
	r.start = start

	slog.Info("fsm_manager_ready", "db_path", dbPath)
	return r, nil
}

// Register registers the remediation FSM
func (r *Runner) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[RemediationRequest, RemediationResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[RemediationRequest, RemediationResponse](manager, "remediation").
		Start(StateLocate, r.handleLocate).
		To(StateInspect, r.handleInspect).
		To(StateAct, r.handleAct).
		To(StateComplete, r.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

// Remediate starts one run and blocks until it reaches a terminal state.
func (r *Runner) Remediate(ctx context.Context, report security.Report) (*remediation.Outcome, error) {
	run := remediation.Run{ID: uuid.NewString(), Signal: report.Signal, Started: time.Now()}
	defer r.results.Delete(run.ID)

	slog.Info("fsm_run_start", "run_id", run.ID, "signal", report.Signal.Kind)

	req := &RemediationRequest{RunID: run.ID, Signal: report.Signal}
	resp := &RemediationResponse{}

	version, err := r.start(ctx, run.ID, fsm.NewRequest(req, resp))
	if err != nil {
		run.Err = errors.New(errors.KindUnknown, "fsm_start", err)
		r.workflow.Finish(ctx, run)
		return nil, run.Err
	}

	waitErr := r.manager.Wait(ctx, version)

	if v, ok := r.results.Load(run.ID); ok {
		res := v.(*runResult)
		run.Outcome, run.Err = res.outcome, res.err
	}
	if run.Err == nil && run.Outcome == nil {
		if waitErr == nil {
			waitErr = fmt.Errorf("run %s finished without a result", run.ID)
		}
		run.Err = errors.New(errors.KindUnknown, "fsm_wait", waitErr)
	}

	r.workflow.Finish(ctx, run)
	return run.Outcome, run.Err
}

// Close stops the manager, giving in-flight runs ten seconds to settle.
func (r *Runner) Close() {
	slog.Info("fsm_manager_shutdown")
	r.manager.Shutdown(10 * time.Second)
}

func (r *Runner) store(runID string, outcome *remediation.Outcome, err error) {
	r.results.Store(runID, &runResult{outcome: outcome, err: err})
}
