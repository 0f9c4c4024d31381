package provision

import (
	"context"
	"fmt"
	"strings"

	"sitewright/internal/model"
)

// validateTenantStep is the soft precondition gate. A missing tenant is
// fatal; an empty directory is published anyway with a warning, since
// wizard users routinely publish before loading content.
func validateTenantStep(d Deps) Step {
	return Step{
		Name: StepValidateTenant,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			if t == nil {
				return ErrTenantNotFound
			}
			if len(t.Categories) == 0 {
				d.Logger.Warn("tenant has no categories, publishing an empty directory",
					"tenant_id", t.ID, "job_id", job.ID)
			}
			return nil
		},
	}
}

func generateSiteStep(d Deps) Step {
	return Step{
		Name: StepGenerateSite,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			res, err := d.Builder.Build(ctx, t)
			if err != nil {
				return fmt.Errorf("generate static site: %w", err)
			}
			job.ExternalRefs.Build = &BuildRefs{Generated: true, BuildID: res.BuildID, Pages: res.Pages}
			job.Compensation.Build = &BuildUndo{BuildID: res.BuildID}
			return nil
		},
		Compensate: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			undo := job.Compensation.Build
			if undo == nil {
				return nil
			}
			return d.Builder.Discard(ctx, undo.BuildID)
		},
	}
}

func deployCDNStep(d Deps) Step {
	return Step{
		Name: StepDeployCDN,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			build := job.ExternalRefs.Build
			if build == nil {
				return fmt.Errorf("deploy to cdn: no build available")
			}
			res, err := d.CDN.Deploy(ctx, t, build.BuildID)
			if err != nil {
				return fmt.Errorf("deploy to cdn: %w", err)
			}
			job.ExternalRefs.CDN = &CDNRefs{Deployed: true, SiteID: res.SiteID, DeploymentURL: res.URL}
			job.Compensation.CDN = &CDNUndo{SiteID: res.SiteID}
			return nil
		},
		Compensate: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			undo := job.Compensation.CDN
			if undo == nil {
				return nil
			}
			return d.CDN.Remove(ctx, undo.SiteID)
		},
	}
}

func setupSearchIndexStep(d Deps) Step {
	return Step{
		Name: StepSetupSearchIndex,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			indexID, err := d.Search.EnsureIndex(ctx, t)
			if err != nil {
				return fmt.Errorf("setup search index: %w", err)
			}
			job.ExternalRefs.Search = &SearchRefs{Created: true, IndexID: indexID}
			job.Compensation.Search = &SearchUndo{IndexID: indexID}
			return nil
		},
		Compensate: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			undo := job.Compensation.Search
			if undo == nil {
				return nil
			}
			return d.Search.DeleteIndex(ctx, undo.IndexID)
		},
	}
}

func configureDomainStep(d Deps) Step {
	return Step{
		Name: StepConfigureDomain,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			domain, err := d.Domains.Configure(ctx, t)
			if err != nil {
				return fmt.Errorf("configure domain: %w", err)
			}
			job.ExternalRefs.Domain = &DomainRefs{Configured: true, CustomDomain: domain}
			job.Compensation.Domain = &DomainUndo{Domain: domain}
			return nil
		},
		Compensate: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			undo := job.Compensation.Domain
			if undo == nil {
				return nil
			}
			return d.Domains.Release(ctx, undo.Domain)
		},
	}
}

// finalizePublishStep records the publication on the tenant and writes
// the client-facing result. It has no compensation: once every prior
// step has succeeded there is nothing left that can half-happen.
func finalizePublishStep(d Deps) Step {
	return Step{
		Name: StepCompleted,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			if err := d.Tenants.MarkPublished(ctx, t.ID, d.Clock()); err != nil {
				return fmt.Errorf("mark tenant published: %w", err)
			}
			job.ExternalRefs.Result = &Result{
				TenantURL: tenantURL(t, job),
				AdminURL:  adminURL(d.AdminBaseURL, t),
			}
			return nil
		},
	}
}

func removeFromCDNStep(d Deps) Step {
	return Step{
		Name: StepRemoveFromCDN,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			if t == nil {
				return ErrTenantNotFound
			}
			// Sites are keyed by tenant slug; see Deployer.
			if err := d.CDN.Remove(ctx, t.Slug); err != nil {
				return fmt.Errorf("remove from cdn: %w", err)
			}
			job.ExternalRefs.CDN = &CDNRefs{Deployed: false, SiteID: t.Slug}
			return nil
		},
	}
}

func deleteSearchIndexStep(d Deps) Step {
	return Step{
		Name: StepDeleteSearchIndex,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			indexID := SearchIndexID(t.ID)
			if err := d.Search.DeleteIndex(ctx, indexID); err != nil {
				return fmt.Errorf("delete search index: %w", err)
			}
			job.ExternalRefs.Search = &SearchRefs{Created: false, IndexID: indexID}
			return nil
		},
	}
}

func releaseDomainStep(d Deps) Step {
	return Step{
		Name: StepReleaseDomain,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			if t.Domain == "" {
				return nil
			}
			if err := d.Domains.Release(ctx, t.Domain); err != nil {
				return fmt.Errorf("release domain: %w", err)
			}
			job.ExternalRefs.Domain = &DomainRefs{Configured: false, CustomDomain: t.Domain}
			return nil
		},
	}
}

func finalizeDeleteStep(d Deps) Step {
	return Step{
		Name: StepCompleted,
		Run: func(ctx context.Context, t *model.TenantSnapshot, job *JobRecord) error {
			if err := d.Tenants.MarkUnpublished(ctx, t.ID); err != nil {
				return fmt.Errorf("mark tenant unpublished: %w", err)
			}
			return nil
		},
	}
}

// tenantURL picks the public URL for a completed publish: the domain
// bound by this job, then the tenant's configured domain, then the raw
// CDN deployment URL.
func tenantURL(t *model.TenantSnapshot, job *JobRecord) string {
	if ref := job.ExternalRefs.Domain; ref != nil && ref.Configured && ref.CustomDomain != "" {
		return "https://" + ref.CustomDomain
	}
	if t.Domain != "" {
		return "https://" + t.Domain
	}
	if ref := job.ExternalRefs.CDN; ref != nil && ref.DeploymentURL != "" {
		return ref.DeploymentURL
	}
	return ""
}

func adminURL(base string, t *model.TenantSnapshot) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/tenants/" + t.ID.String()
}
