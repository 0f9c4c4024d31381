package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitewright/internal/metrics"
)

// Service is the public surface of the orchestrator: create a job and
// poll it. Execution happens on a detached background context so that
// the HTTP request that created a job never owns its lifetime.
type Service struct {
	jobs     JobStore
	registry *Registry
	runner   *Runner
	clock    Clock
	newID    IDGen
	log      *slog.Logger

	bg context.Context
	wg sync.WaitGroup
}

// NewService wires the job control API. bg is the context scheduled
// runs inherit; cancelling it stops in-flight work at the next step
// boundary of each runner.
func NewService(bg context.Context, jobs JobStore, tenants TenantStore, registry *Registry, clock Clock, newID IDGen, log *slog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = uuid.New
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		jobs:     jobs,
		registry: registry,
		runner:   NewRunner(jobs, tenants, registry, clock, log),
		clock:    clock,
		newID:    newID,
		log:      log,
		bg:       bg,
	}
}

// CreateProvisioningJob creates a queued job record and schedules its
// execution. It returns the job id immediately; it never blocks on any
// step. ErrTenantBusy is returned when the tenant already has an
// active job.
func (s *Service) CreateProvisioningJob(ctx context.Context, tenantID uuid.UUID, typ JobType) (uuid.UUID, error) {
	total := s.registry.StepsTotal(typ)
	if total == 0 {
		return uuid.Nil, fmt.Errorf("unsupported job type: %q", typ)
	}

	job := &JobRecord{
		ID:          s.newID(),
		TenantID:    tenantID,
		Type:        typ,
		Status:      StatusQueued,
		CurrentStep: CurrentStepQueued,
		StepsTotal:  total,
		CreatedAt:   s.clock(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return uuid.Nil, err
	}

	s.schedule(job.ID)
	return job.ID, nil
}

// GetJobStatus returns the formatted status for a job, or nil when no
// such job exists. It has no side effects.
func (s *Service) GetJobStatus(ctx context.Context, id uuid.UUID) (*JobStatus, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		if err == ErrJobNotFound {
			return nil, nil
		}
		return nil, err
	}
	return FormatStatus(job), nil
}

// GetTenantJobs returns all of a tenant's jobs, newest first.
func (s *Service) GetTenantJobs(ctx context.Context, tenantID uuid.UUID) ([]*JobRecord, error) {
	return s.jobs.ListTenantJobs(ctx, tenantID)
}

// CancelJob moves a queued or running job to cancelled. It returns
// false, writing nothing, when the job does not exist or is already
// terminal. Cancellation means "stop making progress": side effects of
// steps that already completed are left in place and stay visible in
// the job's externalRefs, so cancelling never triggers compensation.
// The runner notices the cancelled status at its next step boundary; a
// step already in flight completes first.
func (s *Service) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		if err == ErrJobNotFound {
			return false, nil
		}
		return false, err
	}
	if job.Status.Terminal() {
		return false, nil
	}

	now := s.clock()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		// Lost the race against the runner's terminal write.
		if errors.Is(err, ErrJobFinished) {
			return false, nil
		}
		return false, err
	}
	metrics.RecordProvisionJob(string(job.Type), string(StatusCancelled))
	return true, nil
}

// ResumeInFlight re-schedules every queued or running job. Called once
// at startup so jobs interrupted by a restart continue from their
// persisted stepsCompleted.
func (s *Service) ResumeInFlight(ctx context.Context) (int, error) {
	jobs, err := s.jobs.ListActiveJobs(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		s.log.Info("provision: resuming in-flight job",
			"job_id", job.ID, "tenant_id", job.TenantID, "steps_completed", job.StepsCompleted)
		s.schedule(job.ID)
	}
	return len(jobs), nil
}

// Wait blocks until all scheduled runs have finished. Used by shutdown
// and by tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) schedule(id uuid.UUID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runner.Run(s.bg, id)
	}()
}
