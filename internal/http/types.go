package http

import (
	"sitewright/internal/model"
	"sitewright/internal/provision"
)

// ErrorResponse is the uniform error envelope for all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CreateTenantRequest is the body for POST /v1/tenants.
type CreateTenantRequest struct {
	Slug     string         `json:"slug"`
	Name     string         `json:"name"`
	Domain   string         `json:"domain"`
	Branding model.Branding `json:"branding"`
}

// UpdateTenantRequest is the body for PATCH /v1/tenants/:id. Nil
// fields are left unchanged.
type UpdateTenantRequest struct {
	Name     *string         `json:"name"`
	Domain   *string         `json:"domain"`
	Branding *model.Branding `json:"branding"`
}

// TenantResponse wraps a tenant in the success envelope.
type TenantResponse struct {
	Success bool         `json:"success"`
	Tenant  model.Tenant `json:"tenant"`
}

// TenantListResponse wraps a tenant list.
type TenantListResponse struct {
	Success bool           `json:"success"`
	Tenants []model.Tenant `json:"tenants"`
}

// CreateCategoryRequest is the body for POST /v1/tenants/:id/categories.
type CreateCategoryRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int32  `json:"position"`
}

// CategoryResponse wraps a category.
type CategoryResponse struct {
	Success  bool           `json:"success"`
	Category model.Category `json:"category"`
}

// CategoryListResponse wraps a tenant's categories.
type CategoryListResponse struct {
	Success    bool             `json:"success"`
	Categories []model.Category `json:"categories"`
}

// CreateListingRequest is the body for POST /v1/tenants/:id/listings.
// Description may be HTML; it is converted to Markdown before storage.
type CreateListingRequest struct {
	Category    string   `json:"category"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Tags        []string `json:"tags"`
}

// ListingResponse wraps a listing.
type ListingResponse struct {
	Success bool          `json:"success"`
	Listing model.Listing `json:"listing"`
}

// ListingListResponse wraps a tenant's listings.
type ListingListResponse struct {
	Success  bool            `json:"success"`
	Listings []model.Listing `json:"listings"`
}

// PublishRequest is the optional body for POST /v1/tenants/:id/publish.
// Type defaults to "create".
type PublishRequest struct {
	Type string `json:"type"`
}

// PublishResponse acknowledges an accepted provisioning job.
type PublishResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	URL     string `json:"url"`
}

// JobStatusResponse wraps a polled job status.
type JobStatusResponse struct {
	Success bool                 `json:"success"`
	Job     *provision.JobStatus `json:"job"`
}

// JobListResponse wraps a tenant's job history.
type JobListResponse struct {
	Success bool                   `json:"success"`
	Jobs    []*provision.JobStatus `json:"jobs"`
}

// CancelResponse reports whether a cancel marked the job.
type CancelResponse struct {
	Success   bool `json:"success"`
	Cancelled bool `json:"cancelled"`
}

// BrandingImportRequest is the body for POST /v1/tenants/:id/branding/import.
type BrandingImportRequest struct {
	URL string `json:"url"`
}

// BrandingImportResponse returns the extracted branding without saving it.
type BrandingImportResponse struct {
	Success  bool           `json:"success"`
	Branding model.Branding `json:"branding"`
}

// CreateAPIKeyRequest is the body for POST /admin/api-keys.
type CreateAPIKeyRequest struct {
	Label              string `json:"label"`
	IsAdmin            bool   `json:"isAdmin"`
	RateLimitPerMinute *int   `json:"rateLimitPerMinute"`
	TenantID           string `json:"tenantId"`
}

// CreateAPIKeyResponse returns the raw key exactly once, at creation.
type CreateAPIKeyResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Key     string `json:"key"`
	Label   string `json:"label"`
	IsAdmin bool   `json:"isAdmin"`
}
