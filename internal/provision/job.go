package provision

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobType selects which step sequence a provisioning job runs.
// These values must match the text values stored in
// provisioning_jobs.type.
type JobType string

const (
	JobCreate    JobType = "create"
	JobUpdate    JobType = "update"
	JobDelete    JobType = "delete"
	JobRepublish JobType = "republish"
)

// ParseJobType normalizes a client-supplied job type string.
func ParseJobType(raw string) (JobType, error) {
	switch JobType(strings.ToLower(strings.TrimSpace(raw))) {
	case JobCreate:
		return JobCreate, nil
	case JobUpdate:
		return JobUpdate, nil
	case JobDelete:
		return JobDelete, nil
	case JobRepublish:
		return JobRepublish, nil
	case "":
		return JobCreate, nil
	default:
		return "", fmt.Errorf("unknown job type: %q", raw)
	}
}

// Status represents the lifecycle state of a provisioning job.
// These values must match the text values stored in
// provisioning_jobs.status.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final. A terminal job record
// is never mutated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CurrentStepQueued is the currentStep value of a job that has not
// started executing yet.
const CurrentStepQueued = "QUEUED"

// ExternalRefs accumulates the identifiers each step produces. Every
// step owns exactly one field, so a later step can never clobber an
// earlier step's output; fields are set once and never cleared.
type ExternalRefs struct {
	Build  *BuildRefs  `json:"build,omitempty"`
	CDN    *CDNRefs    `json:"cdn,omitempty"`
	Search *SearchRefs `json:"search,omitempty"`
	Domain *DomainRefs `json:"domain,omitempty"`
	Result *Result     `json:"result,omitempty"`
}

// BuildRefs is produced by GENERATE_STATIC_SITE.
type BuildRefs struct {
	Generated bool   `json:"generated"`
	BuildID   string `json:"buildId"`
	Pages     int    `json:"pages"`
}

// CDNRefs is produced by DEPLOY_TO_CDN.
type CDNRefs struct {
	Deployed      bool   `json:"deployed"`
	SiteID        string `json:"siteId"`
	DeploymentURL string `json:"deploymentUrl"`
}

// SearchRefs is produced by SETUP_SEARCH_INDEX.
type SearchRefs struct {
	Created bool   `json:"created"`
	IndexID string `json:"indexId"`
}

// DomainRefs is produced by CONFIGURE_DOMAIN.
type DomainRefs struct {
	Configured   bool   `json:"configured"`
	CustomDomain string `json:"customDomain"`
}

// Result is written by the finalization step and surfaced to clients
// once the job completes.
type Result struct {
	TenantURL string `json:"tenantUrl"`
	AdminURL  string `json:"adminUrl"`
}

// CompensationData records what each step would need to undo its
// effect. It is kept separate from ExternalRefs so that compensation
// inputs never leak into the client-visible status.
type CompensationData struct {
	Build  *BuildUndo  `json:"build,omitempty"`
	CDN    *CDNUndo    `json:"cdn,omitempty"`
	Search *SearchUndo `json:"search,omitempty"`
	Domain *DomainUndo `json:"domain,omitempty"`
}

type BuildUndo struct {
	BuildID string `json:"buildId"`
}

type CDNUndo struct {
	SiteID string `json:"siteId"`
}

type SearchUndo struct {
	IndexID string `json:"indexId"`
}

type DomainUndo struct {
	Domain string `json:"domain"`
}

// JobRecord is the durable, pollable state of one provisioning run.
// It is created queued, mutated only by the saga runner while it
// executes, and immutable once terminal (CancelJob excepted).
type JobRecord struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Type           JobType
	Status         Status
	Progress       int
	CurrentStep    string
	StepsTotal     int
	StepsCompleted int
	ExternalRefs   ExternalRefs
	Compensation   CompensationData
	ErrorMessage   string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// progressPct derives progress from step counts. Progress is never
// stored independently of stepsCompleted.
func progressPct(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
