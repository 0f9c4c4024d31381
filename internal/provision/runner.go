package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sitewright/internal/metrics"
	"sitewright/internal/model"
)

// Runner executes a job's step sequence to completion or failure. It
// persists state at every step boundary and is the sole writer of the
// job record while the job runs. No error ever escapes Run: callers
// observe outcomes only by polling the persisted record.
type Runner struct {
	jobs     JobStore
	tenants  TenantStore
	registry *Registry
	clock    Clock
	log      *slog.Logger
}

func NewRunner(jobs JobStore, tenants TenantStore, registry *Registry, clock Clock, log *slog.Logger) *Runner {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{jobs: jobs, tenants: tenants, registry: registry, clock: clock, log: log}
}

// Run drives the job with the given id. It is safe to re-invoke for a
// job that was interrupted mid-flight: execution resumes from the
// persisted stepsCompleted.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID) {
	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil {
		r.log.Warn("provision: job load failed", "job_id", jobID, "error", err)
		return
	}
	if job.Status.Terminal() {
		return
	}

	steps := r.registry.Steps(job.Type)
	if len(steps) == 0 {
		r.fail(ctx, job, nil, fmt.Errorf("no step sequence for job type %q", job.Type))
		return
	}

	if job.Status == StatusQueued {
		now := r.clock()
		job.Status = StatusRunning
		job.StartedAt = &now
		if err := r.jobs.UpdateJob(ctx, job); err != nil {
			if errors.Is(err, ErrJobFinished) {
				r.log.Info("provision: job cancelled before start", "job_id", job.ID)
				return
			}
			r.log.Warn("provision: marking job running failed", "job_id", job.ID, "error", err)
			return
		}
	}

	// The snapshot is loaded once and treated as immutable for the
	// whole job; edits made while a job runs take effect on the next
	// publish.
	tenant, err := r.tenants.GetTenantSnapshot(ctx, job.TenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			err = ErrTenantNotFound
		}
		r.fail(ctx, job, nil, err)
		return
	}

	for i := job.StepsCompleted; i < len(steps); i++ {
		if r.cancelled(ctx, job.ID) {
			r.log.Info("provision: job cancelled, stopping", "job_id", job.ID, "after_steps", job.StepsCompleted)
			return
		}

		step := steps[i]
		if err := step.Run(ctx, tenant, job); err != nil {
			r.log.Warn("provision: step failed", "job_id", job.ID, "step", step.Name, "error", err)
			job.CurrentStep = step.Name
			r.fail(ctx, job, tenant, err)
			return
		}

		job.StepsCompleted = i + 1
		job.CurrentStep = step.Name
		job.Progress = progressPct(job.StepsCompleted, job.StepsTotal)
		if job.StepsCompleted == len(steps) {
			now := r.clock()
			job.Status = StatusCompleted
			job.CompletedAt = &now
		}
		if err := r.jobs.UpdateJob(ctx, job); err != nil {
			// A cancel that landed while the step was executing wins:
			// the effects of the finished step stay in place, nothing
			// is compensated, and the cancelled record is left as is.
			if errors.Is(err, ErrJobFinished) {
				r.log.Info("provision: job cancelled during step, stopping",
					"job_id", job.ID, "step", step.Name)
				return
			}
			r.log.Warn("provision: persisting step progress failed",
				"job_id", job.ID, "step", step.Name, "error", err)
			return
		}
	}

	metrics.RecordProvisionJob(string(job.Type), string(StatusCompleted))
	r.log.Info("provision: job completed", "job_id", job.ID, "tenant_id", job.TenantID, "type", job.Type)
}

// cancelled checks the persisted record, not the in-memory copy, so a
// concurrent CancelJob is observed at the next step boundary. A fetch
// error is treated as not-cancelled; the failure path will surface it.
func (r *Runner) cancelled(ctx context.Context, id uuid.UUID) bool {
	cur, err := r.jobs.GetJob(ctx, id)
	return err == nil && cur.Status == StatusCancelled
}

// fail compensates the steps that already completed, then settles the
// job as failed. A persistence failure here is logged and swallowed:
// the record may have been deleted externally, and there is no caller
// left to propagate to.
func (r *Runner) fail(ctx context.Context, job *JobRecord, tenant *model.TenantSnapshot, cause error) {
	// A cancel racing a failing step wins: cancellation never
	// compensates, and the cancelled record stays as written.
	if r.cancelled(ctx, job.ID) {
		r.log.Info("provision: job cancelled during failing step, stopping",
			"job_id", job.ID, "error", cause)
		return
	}

	job.ErrorMessage = cause.Error()

	r.compensate(ctx, job, tenant)

	now := r.clock()
	job.Status = StatusFailed
	job.CompletedAt = &now
	if err := r.jobs.UpdateJob(ctx, job); err != nil {
		if errors.Is(err, ErrJobFinished) {
			r.log.Info("provision: job cancelled during compensation, not marking failed", "job_id", job.ID)
			return
		}
		r.log.Warn("provision: persisting failed state lost", "job_id", job.ID, "error", err)
	}
	metrics.RecordProvisionJob(string(job.Type), string(StatusFailed))
}

// compensate undoes completed steps in reverse completion order.
// Best-effort: one step's compensation error never prevents the
// attempts for earlier steps, and nothing here changes job status.
func (r *Runner) compensate(ctx context.Context, job *JobRecord, tenant *model.TenantSnapshot) {
	steps := r.registry.Steps(job.Type)
	done := job.StepsCompleted
	if done > len(steps) {
		done = len(steps)
	}
	for i := done - 1; i >= 0; i-- {
		step := steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx, tenant, job); err != nil {
			r.log.Warn("provision: compensation failed", "job_id", job.ID, "step", step.Name, "error", err)
			metrics.RecordCompensation(step.Name, false)
			continue
		}
		metrics.RecordCompensation(step.Name, true)
	}
}
