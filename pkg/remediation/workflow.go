package remediation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/metrics"
	"github.com/leonardo-meireles/vm-remediator/pkg/security"
	"go.opentelemetry.io/otel/attribute"
)

// Workflow drives locate, inspect, decide and act in-process.
type Workflow struct {
	locator  *Locator
	executor *Executor
	recorder Recorder
	metrics  *metrics.Metrics
}

// NewWorkflow wires the steps together. recorder may be nil.
func NewWorkflow(locator *Locator, executor *Executor, recorder Recorder, m *metrics.Metrics) *Workflow {
	return &Workflow{locator: locator, executor: executor, recorder: recorder, metrics: m}
}

// Locator returns the workflow's locator.
func (w *Workflow) Locator() *Locator { return w.locator }

// Executor returns the workflow's executor.
func (w *Workflow) Executor() *Executor { return w.executor }

// Remediate runs one report to completion. The returned outcome is non-nil
// whenever an instance was resolved, even on failure.
func (w *Workflow) Remediate(ctx context.Context, report security.Report) (*Outcome, error) {
	run := Run{ID: uuid.NewString(), Signal: report.Signal, Started: time.Now()}

	ctx, span := tracer.Start(ctx, "remediation.run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", run.ID), attribute.String("signal", string(report.Signal.Kind)))

	slog.Info("remediation_start", "run_id", run.ID, "signal", report.Signal.Kind)

	ref, err := w.locator.Locate(ctx)
	if err != nil {
		run.Err = err
		w.Finish(ctx, run)
		return nil, err
	}

	run.Outcome, run.Err = w.executor.Execute(ctx, ref)
	if run.Err != nil {
		span.RecordError(run.Err)
	}
	w.Finish(ctx, run)
	return run.Outcome, run.Err
}

// Finish records metrics, logs the result and hands the run to the recorder.
// A recorder failure is logged and never changes the run's result.
func (w *Workflow) Finish(ctx context.Context, run Run) {
	run.Duration = time.Since(run.Started)
	result := ResultLabel(run.Err)
	w.metrics.ObserveRemediate(result, run.Duration)

	attrs := []any{"run_id", run.ID, "result", result, "duration_ms", run.Duration.Milliseconds()}
	if run.Outcome != nil {
		attrs = append(attrs, "instance", run.Outcome.Instance.Name, "zone", run.Outcome.Instance.Zone, "action", run.Outcome.Action)
	}
	if run.Err != nil {
		slog.Error("remediation_failed", append(attrs, "error", run.Err)...)
	} else {
		slog.Info("remediation_complete", attrs...)
	}

	if w.recorder == nil {
		return
	}
	if err := w.recorder.Record(ctx, run); err != nil {
		slog.Error("journal_record_failed", "run_id", run.ID, "error", err)
	}
}

// ResultLabel names a run's result for metrics and the journal.
func ResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errors.KindOf(err).String()
}
