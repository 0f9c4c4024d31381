package provision

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sitewright/internal/model"
)

var (
	// ErrJobNotFound is returned by JobStore lookups for unknown ids.
	ErrJobNotFound = errors.New("provisioning job not found")

	// ErrTenantBusy is returned by CreateJob when the tenant already
	// has a queued or running job. Jobs are serialized per tenant at
	// creation time.
	ErrTenantBusy = errors.New("tenant already has an active provisioning job")

	// ErrJobFinished is returned by UpdateJob when the persisted record
	// is already terminal. Terminal states are immutable: a cancel that
	// lands while a step is in flight must not be overwritten by the
	// runner's next progress write.
	ErrJobFinished = errors.New("provisioning job already in a terminal state")

	// ErrTenantNotFound terminates a job whose tenant snapshot cannot
	// be loaded. The message is part of the polled status surface, so
	// it deliberately breaks the lowercase error convention.
	ErrTenantNotFound = errors.New("Tenant not found")
)

// Clock supplies the current time. Injected so tests control every
// timestamp the orchestrator writes.
type Clock func() time.Time

// IDGen supplies new job ids.
type IDGen func() uuid.UUID

// JobStore persists job records. Calls are assumed atomic; no
// cross-call transaction is assumed.
type JobStore interface {
	CreateJob(ctx context.Context, job *JobRecord) error
	GetJob(ctx context.Context, id uuid.UUID) (*JobRecord, error)
	// ListTenantJobs returns a tenant's jobs newest first by createdAt.
	ListTenantJobs(ctx context.Context, tenantID uuid.UUID) ([]*JobRecord, error)
	// UpdateJob persists a job's mutable state. A record that is
	// already terminal is never overwritten: ErrJobFinished.
	UpdateJob(ctx context.Context, job *JobRecord) error
	// ListActiveJobs returns all queued and running jobs, oldest first.
	ListActiveJobs(ctx context.Context) ([]*JobRecord, error)
}

// TenantStore exposes the two tenant fields the orchestrator owns
// (status, publishedAt) plus the read-only snapshot.
type TenantStore interface {
	GetTenantSnapshot(ctx context.Context, id uuid.UUID) (*model.TenantSnapshot, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkUnpublished(ctx context.Context, id uuid.UUID) error
}

// BuildResult describes a finished static-site build.
type BuildResult struct {
	BuildID   string
	OutputDir string
	Pages     int
}

// SiteBuilder renders a tenant snapshot into a static site build.
type SiteBuilder interface {
	Build(ctx context.Context, t *model.TenantSnapshot) (BuildResult, error)
	// Discard removes a build's artifacts. Missing builds are not an error.
	Discard(ctx context.Context, buildID string) error
}

// DeployResult describes a live CDN deployment.
type DeployResult struct {
	SiteID string
	URL    string
}

// Deployer pushes builds to the CDN. Sites are keyed by tenant slug,
// so teardown can address a site without the job history that created
// it. Remove is idempotent: removing an absent site succeeds.
type Deployer interface {
	Deploy(ctx context.Context, t *model.TenantSnapshot, buildID string) (DeployResult, error)
	Remove(ctx context.Context, siteID string) error
}

// SearchIndexer manages per-tenant search indexes. Index ids are
// derived from the tenant id, so teardown can reconstruct them.
// DeleteIndex is idempotent.
type SearchIndexer interface {
	EnsureIndex(ctx context.Context, t *model.TenantSnapshot) (string, error)
	DeleteIndex(ctx context.Context, indexID string) error
}

// DomainConfigurer binds and releases the tenant's domain. Release is
// idempotent.
type DomainConfigurer interface {
	Configure(ctx context.Context, t *model.TenantSnapshot) (string, error)
	Release(ctx context.Context, domain string) error
}
