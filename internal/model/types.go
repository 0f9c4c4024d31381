package model

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the publication state of a tenant's directory site.
// These values must match the text values stored in tenants.status.
type TenantStatus string

const (
	TenantDraft     TenantStatus = "draft"
	TenantPublished TenantStatus = "published"
	TenantArchived  TenantStatus = "archived"
)

// Branding holds the visual identity collected by the setup wizard.
// Extra carries wizard-specific values that do not warrant a column.
type Branding struct {
	SiteTitle    string         `json:"siteTitle,omitempty"`
	Tagline      string         `json:"tagline,omitempty"`
	LogoURL      string         `json:"logoUrl,omitempty"`
	OgImageURL   string         `json:"ogImageUrl,omitempty"`
	PrimaryColor string         `json:"primaryColor,omitempty"`
	AccentColor  string         `json:"accentColor,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Category is a directory section a listing belongs to.
type Category struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenantId"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Position    int32     `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Listing is a single directory entry. Description is stored as
// Markdown; HTML submitted on ingest is converted before storage.
type Listing struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenantId"`
	CategoryID  uuid.UUID `json:"categoryId"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Tenant is one directory site owner.
type Tenant struct {
	ID          uuid.UUID    `json:"id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Domain      string       `json:"domain,omitempty"`
	Status      TenantStatus `json:"status"`
	Branding    Branding     `json:"branding"`
	PublishedAt *time.Time   `json:"publishedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TenantSnapshot is the read-only view of a tenant the provisioning
// pipeline works from. It is loaded once per job and not refreshed
// while the job runs.
type TenantSnapshot struct {
	Tenant
	Categories []Category `json:"categories"`
	Listings   []Listing  `json:"listings"`
}
