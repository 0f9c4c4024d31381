package provision

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sitewright/internal/model"
)

// Step names are part of the polled status surface and must not change.
const (
	StepValidateTenant    = "VALIDATE_TENANT"
	StepGenerateSite      = "GENERATE_STATIC_SITE"
	StepDeployCDN         = "DEPLOY_TO_CDN"
	StepSetupSearchIndex  = "SETUP_SEARCH_INDEX"
	StepConfigureDomain   = "CONFIGURE_DOMAIN"
	StepRemoveFromCDN     = "REMOVE_FROM_CDN"
	StepDeleteSearchIndex = "DELETE_SEARCH_INDEX"
	StepReleaseDomain     = "RELEASE_DOMAIN"
	StepCompleted         = "COMPLETED"
)

// Step is one named unit of a provisioning sequence. Run performs the
// side effect and records its outputs on the job; Compensate, when
// present, attempts to undo a previously successful Run using what it
// recorded. Steps after the first are expected to be idempotent, since
// a restart may re-invoke the runner mid-job.
type Step struct {
	Name       string
	Run        func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error
	Compensate func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error
}

// Deps are the collaborators the step sequences are built over.
type Deps struct {
	Builder SiteBuilder
	CDN     Deployer
	Search  SearchIndexer
	Domains DomainConfigurer
	Tenants TenantStore

	// AdminBaseURL is the wizard/admin UI origin used to derive the
	// adminUrl included in a completed job's result.
	AdminBaseURL string

	Clock  Clock
	Logger *slog.Logger
}

// Registry holds the fixed, ordered step sequence for each job type.
// Sequences are assembled once at startup; they are never composed
// dynamically.
type Registry struct {
	sequences map[JobType][]Step
}

// NewRegistry assembles the per-type step sequences from deps.
func NewRegistry(d Deps) *Registry {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Registry{sequences: map[JobType][]Step{
		JobCreate: {
			validateTenantStep(d),
			generateSiteStep(d),
			deployCDNStep(d),
			setupSearchIndexStep(d),
			configureDomainStep(d),
			finalizePublishStep(d),
		},
		JobUpdate: {
			validateTenantStep(d),
			generateSiteStep(d),
			deployCDNStep(d),
			setupSearchIndexStep(d),
			finalizePublishStep(d),
		},
		JobRepublish: {
			validateTenantStep(d),
			generateSiteStep(d),
			deployCDNStep(d),
			finalizePublishStep(d),
		},
		JobDelete: {
			removeFromCDNStep(d),
			deleteSearchIndexStep(d),
			releaseDomainStep(d),
			finalizeDeleteStep(d),
		},
	}}
}

// Steps returns the step sequence for a job type, or nil for an
// unknown type.
func (r *Registry) Steps(t JobType) []Step {
	return r.sequences[t]
}

// StepsTotal returns the fixed step count for a job type.
func (r *Registry) StepsTotal(t JobType) int {
	return len(r.sequences[t])
}

// SearchIndexID derives a tenant's search index id. The indexer and
// the teardown steps must agree on this, so it lives here rather than
// in the search client.
func SearchIndexID(tenantID uuid.UUID) string {
	return "tenant-" + tenantID.String()
}
