package remediation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/inventory"
	"github.com/leonardo-meireles/vm-remediator/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

// Executor reads an instance's live state, picks the action and submits it.
type Executor struct {
	client  inventory.Client
	project string
	dryRun  bool
	metrics *metrics.Metrics
}

// NewExecutor creates an executor. With dryRun set, decisions are reported
// but no control command is sent.
func NewExecutor(client inventory.Client, project string, dryRun bool, m *metrics.Metrics) *Executor {
	return &Executor{client: client, project: project, dryRun: dryRun, metrics: m}
}

// Execute runs fetch, decide and act in that order.
func (e *Executor) Execute(ctx context.Context, ref InstanceRef) (*Outcome, error) {
	state, err := e.Inspect(ctx, ref)
	if err != nil {
		return failed(ref, ActionNone, "", err), err
	}

	action, err := Decide(state)
	if err != nil {
		err = errors.WithInstance(err, ref.Name)
		slog.Warn("remediation_unsupported_state", "instance", ref.Name, "zone", ref.Zone, "status", state)
		return failed(ref, ActionNone, state, err), err
	}

	return e.Act(ctx, ref, state, action)
}

// Inspect fetches the instance's current status. It is never served from a
// cache; the locator's listing only proves the address, not the state.
func (e *Executor) Inspect(ctx context.Context, ref InstanceRef) (State, error) {
	ctx, span := tracer.Start(ctx, "remediation.inspect")
	defer span.End()

	details, err := e.client.GetInstance(ctx, e.project, ref.Zone, ref.Name)
	e.metrics.RemoteCall(inventory.OpGetInstance, err)
	if err != nil {
		span.RecordError(err)
		return "", errors.WithInstance(errors.New(errors.KindRemoteCall, inventory.OpGetInstance, err), ref.Name)
	}
	if details == nil || details.Status == "" {
		err := fmt.Errorf("empty instance details")
		span.RecordError(err)
		return "", errors.WithInstance(errors.New(errors.KindRemoteCall, inventory.OpGetInstance, err), ref.Name)
	}

	span.SetAttributes(attribute.String("status", details.Status))
	slog.Info("instance_details", "instance", ref.Name, "zone", ref.Zone, "status", details.Status)
	return State(details.Status), nil
}

// Act submits the control command for an already-decided action. ActionNone
// never reaches the provider.
func (e *Executor) Act(ctx context.Context, ref InstanceRef, state State, action Action) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "remediation.act")
	defer span.End()
	span.SetAttributes(attribute.String("action", string(action)), attribute.String("instance", ref.Name))

	var submit func(context.Context, string, string, string) (*inventory.Operation, error)
	var op string
	switch action {
	case ActionReset:
		submit, op = e.client.ResetInstance, inventory.OpResetInstance
	case ActionStart:
		submit, op = e.client.StartInstance, inventory.OpStartInstance
	default:
		err := errors.WithInstance(errors.Newf(errors.KindUnsupportedState, "act", "no action for instance status %q", string(state)), ref.Name)
		return failed(ref, ActionNone, state, err), err
	}

	if e.dryRun {
		slog.Info("remediation_dry_run", "instance", ref.Name, "zone", ref.Zone, "action", action, "status", state)
		return &Outcome{
			Instance:       ref,
			Action:         action,
			Success:        true,
			Detail:         fmt.Sprintf("Dry run: would %s %s", action, ref.Name),
			ObservedStatus: string(state),
			DryRun:         true,
		}, nil
	}

	slog.Info("remediation_submit", "instance", ref.Name, "zone", ref.Zone, "action", action, "status", state)
	ack, err := submit(ctx, e.project, ref.Zone, ref.Name)
	e.metrics.RemoteCall(op, err)
	if err == nil && (ack == nil || ack.Name == "") {
		err = fmt.Errorf("%s returned no operation acknowledgement", op)
	}
	if err != nil {
		span.RecordError(err)
		e.metrics.Action(string(action), false)
		err = errors.WithInstance(errors.New(errors.KindRemoteCall, op, err), ref.Name)
		slog.Error("remediation_submit_failed", "instance", ref.Name, "zone", ref.Zone, "action", action, "error", err)
		return failed(ref, action, state, err), err
	}

	e.metrics.Action(string(action), true)
	slog.Info("remediation_submitted", "instance", ref.Name, "zone", ref.Zone, "action", action, "operation", ack.Name)
	return &Outcome{
		Instance:       ref,
		Action:         action,
		Success:        true,
		Detail:         "Operation completed on " + ref.Name,
		ObservedStatus: string(state),
		Operation:      ack.Name,
	}, nil
}

func failed(ref InstanceRef, action Action, state State, err error) *Outcome {
	return &Outcome{
		Instance:       ref,
		Action:         action,
		Success:        false,
		Detail:         err.Error(),
		ObservedStatus: string(state),
	}
}
