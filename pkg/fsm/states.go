package fsm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/remediation"
	"github.com/superfly/fsm"
)

// checkRetry aborts any redelivered transition. Control commands are sent at
// most once per report.
func checkRetry(ctx context.Context, req *fsm.Request[RemediationRequest, RemediationResponse], state string) error {
	if retryCount := fsm.RetryFromContext(ctx); retryCount > 0 {
		slog.Error("fsm_retry_refused", "run_id", req.Msg.RunID, "state", state, "retry", retryCount)
		return fsm.Abort(fmt.Errorf("state %s is not retried (attempt %d)", state, retryCount+1))
	}
	return nil
}

// handleLocate resolves the target address to an instance
func (r *Runner) handleLocate(ctx context.Context, req *fsm.Request[RemediationRequest, RemediationResponse]) (*fsm.Response[RemediationResponse], error) {
	slog.Info("fsm_state_locate", "run_id", req.Msg.RunID)

	if err := checkRetry(ctx, req, StateLocate); err != nil {
		return nil, err
	}

	resp := req.W.Msg
	if resp == nil {
		resp = &RemediationResponse{}
	}

	ref, err := r.workflow.Locator().Locate(ctx)
	if err != nil {
		r.store(req.Msg.RunID, nil, err)
		return nil, fsm.Abort(err)
	}

	resp.Instance = ref
	return fsm.NewResponse(resp), nil
}

// handleInspect fetches live state and decides the action
func (r *Runner) handleInspect(ctx context.Context, req *fsm.Request[RemediationRequest, RemediationResponse]) (*fsm.Response[RemediationResponse], error) {
	slog.Info("fsm_state_inspect", "run_id", req.Msg.RunID)

	if err := checkRetry(ctx, req, StateInspect); err != nil {
		return nil, err
	}

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	state, err := r.workflow.Executor().Inspect(ctx, resp.Instance)
	if err != nil {
		return nil, r.fail(req.Msg.RunID, resp, err)
	}
	resp.ObservedStatus = string(state)

	action, err := remediation.Decide(state)
	if err != nil {
		slog.Warn("remediation_unsupported_state", "instance", resp.Instance.Name, "zone", resp.Instance.Zone, "status", state)
		return nil, r.fail(req.Msg.RunID, resp, errors.WithInstance(err, resp.Instance.Name))
	}
	resp.Action = string(action)

	return fsm.NewResponse(resp), nil
}

// handleAct submits the decided control command
func (r *Runner) handleAct(ctx context.Context, req *fsm.Request[RemediationRequest, RemediationResponse]) (*fsm.Response[RemediationResponse], error) {
	slog.Info("fsm_state_act", "run_id", req.Msg.RunID)

	if err := checkRetry(ctx, req, StateAct); err != nil {
		return nil, err
	}

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	out, err := r.workflow.Executor().Act(ctx, resp.Instance, remediation.State(resp.ObservedStatus), remediation.Action(resp.Action))
	if err != nil {
		r.store(req.Msg.RunID, out, err)
		return nil, fsm.Abort(err)
	}

	resp.Success = out.Success
	resp.Detail = out.Detail
	resp.Operation = out.Operation
	resp.DryRun = out.DryRun

	return fsm.NewResponse(resp), nil
}

// handleComplete publishes the result to the waiting caller
func (r *Runner) handleComplete(ctx context.Context, req *fsm.Request[RemediationRequest, RemediationResponse]) (*fsm.Response[RemediationResponse], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	r.store(req.Msg.RunID, resp.outcome(), nil)
	slog.Info("fsm_complete", "run_id", req.Msg.RunID, "instance", resp.Instance.Name, "action", resp.Action)

	return fsm.NewResponse(resp), nil
}

// fail records a failed outcome for the resolved instance and aborts the run.
func (r *Runner) fail(runID string, resp *RemediationResponse, err error) error {
	out := resp.outcome()
	out.Action = remediation.ActionNone
	out.Success = false
	out.Detail = err.Error()
	r.store(runID, out, err)
	return fsm.Abort(err)
}
