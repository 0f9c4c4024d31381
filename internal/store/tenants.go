package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sitewright/internal/model"
	"sitewright/internal/provision"
)

// ErrSlugTaken is returned when a tenant slug is already in use.
var ErrSlugTaken = errors.New("slug already in use")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanTenant(row pgx.Row) (model.Tenant, error) {
	var t model.Tenant
	var branding []byte
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Domain, &t.Status, &branding,
		&t.PublishedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Tenant{}, ErrNotFound
	}
	if err != nil {
		return model.Tenant{}, err
	}
	if len(branding) > 0 {
		if err := json.Unmarshal(branding, &t.Branding); err != nil {
			return model.Tenant{}, err
		}
	}
	return t, nil
}

const tenantColumns = `id, slug, name, domain, status, branding, published_at, created_at, updated_at`

// CreateTenant inserts a new tenant in draft status.
func (s *Store) CreateTenant(ctx context.Context, t model.Tenant) (model.Tenant, error) {
	branding, err := json.Marshal(t.Branding)
	if err != nil {
		return model.Tenant{}, err
	}

	row := s.Pool.QueryRow(ctx, `
		INSERT INTO tenants (id, slug, name, domain, status, branding)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+tenantColumns,
		t.ID, t.Slug, t.Name, t.Domain, model.TenantDraft, branding)
	out, err := scanTenant(row)
	if isUniqueViolation(err) {
		return model.Tenant{}, ErrSlugTaken
	}
	return out, err
}

// GetTenant fetches a tenant by id.
func (s *Store) GetTenant(ctx context.Context, id uuid.UUID) (model.Tenant, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// GetTenantBySlug fetches a tenant by its slug.
func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (model.Tenant, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

// ListTenants returns all tenants, newest first.
func (s *Store) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTenant updates the mutable tenant fields (name, domain, branding).
func (s *Store) UpdateTenant(ctx context.Context, t model.Tenant) (model.Tenant, error) {
	branding, err := json.Marshal(t.Branding)
	if err != nil {
		return model.Tenant{}, err
	}

	row := s.Pool.QueryRow(ctx, `
		UPDATE tenants SET name = $2, domain = $3, branding = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+tenantColumns,
		t.ID, t.Name, t.Domain, branding)
	return scanTenant(row)
}

// DeleteTenant removes a tenant and, via cascade, its categories,
// listings and job history.
func (s *Store) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPublished records a successful publish.
func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE tenants SET status = $2, published_at = $3, updated_at = now()
		WHERE id = $1`, id, model.TenantPublished, at)
	return err
}

// MarkUnpublished records a successful teardown.
func (s *Store) MarkUnpublished(ctx context.Context, id uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE tenants SET status = $2, published_at = NULL, updated_at = now()
		WHERE id = $1`, id, model.TenantArchived)
	return err
}

// GetTenantSnapshot loads a tenant with its categories and listings.
// Returns provision.ErrTenantNotFound when the tenant does not exist.
func (s *Store) GetTenantSnapshot(ctx context.Context, id uuid.UUID) (*model.TenantSnapshot, error) {
	t, err := s.GetTenant(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, provision.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	snap := &model.TenantSnapshot{Tenant: t}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, tenant_id, slug, name, description, position, created_at
		FROM categories WHERE tenant_id = $1 ORDER BY position, slug`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Slug, &c.Name, &c.Description, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		snap.Categories = append(snap.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.Pool.Query(ctx, `
		SELECT id, tenant_id, category_id, slug, name, description, address, phone, website, tags, created_at
		FROM listings WHERE tenant_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l model.Listing
		if err := rows.Scan(&l.ID, &l.TenantID, &l.CategoryID, &l.Slug, &l.Name, &l.Description,
			&l.Address, &l.Phone, &l.Website, &l.Tags, &l.CreatedAt); err != nil {
			return nil, err
		}
		snap.Listings = append(snap.Listings, l)
	}
	return snap, rows.Err()
}

// CreateCategory inserts a category for a tenant.
func (s *Store) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO categories (id, tenant_id, slug, name, description, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tenant_id, slug, name, description, position, created_at`,
		c.ID, c.TenantID, c.Slug, c.Name, c.Description, c.Position)
	var out model.Category
	err := row.Scan(&out.ID, &out.TenantID, &out.Slug, &out.Name, &out.Description, &out.Position, &out.CreatedAt)
	if isUniqueViolation(err) {
		return model.Category{}, ErrSlugTaken
	}
	return out, err
}

// GetCategoryBySlug fetches one of a tenant's categories by slug.
func (s *Store) GetCategoryBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (model.Category, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, slug, name, description, position, created_at
		FROM categories WHERE tenant_id = $1 AND slug = $2`, tenantID, slug)
	var c model.Category
	err := row.Scan(&c.ID, &c.TenantID, &c.Slug, &c.Name, &c.Description, &c.Position, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Category{}, ErrNotFound
	}
	return c, err
}

// CreateListing inserts a listing under an existing category.
func (s *Store) CreateListing(ctx context.Context, l model.Listing) (model.Listing, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO listings (id, tenant_id, category_id, slug, name, description, address, phone, website, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, tenant_id, category_id, slug, name, description, address, phone, website, tags, created_at`,
		l.ID, l.TenantID, l.CategoryID, l.Slug, l.Name, l.Description, l.Address, l.Phone, l.Website, l.Tags)
	var out model.Listing
	err := row.Scan(&out.ID, &out.TenantID, &out.CategoryID, &out.Slug, &out.Name, &out.Description,
		&out.Address, &out.Phone, &out.Website, &out.Tags, &out.CreatedAt)
	if isUniqueViolation(err) {
		return model.Listing{}, ErrSlugTaken
	}
	return out, err
}
