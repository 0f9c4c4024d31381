package http

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"sitewright/internal/model"
	"sitewright/internal/store"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// tenantIDParam parses the :id path parameter. On failure it writes the
// 400 response and returns false.
func tenantIDParam(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid tenant id",
		})
		return uuid.UUID{}, false
	}
	return id, true
}

func createTenantHandler(c *fiber.Ctx) error {
	var reqBody CreateTenantRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}

	if reqBody.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Missing required field 'name'",
		})
	}
	if !slugPattern.MatchString(reqBody.Slug) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Field 'slug' must be lowercase letters, digits and hyphens",
		})
	}

	st := c.Locals("store").(*store.Store)
	tenant, err := st.CreateTenant(c.Context(), model.Tenant{
		ID:       uuid.New(),
		Slug:     reqBody.Slug,
		Name:     reqBody.Name,
		Domain:   reqBody.Domain,
		Branding: reqBody.Branding,
	})
	if err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Success: false,
				Code:    "SLUG_TAKEN",
				Error:   "Slug is already in use",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "TENANT_CREATE_FAILED",
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(TenantResponse{Success: true, Tenant: tenant})
}

func listTenantsHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	tenants, err := st.ListTenants(c.Context())
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "TENANT_LIST_FAILED",
			Error:   err.Error(),
		})
	}
	return c.JSON(TenantListResponse{Success: true, Tenants: tenants})
}

func getTenantHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	st := c.Locals("store").(*store.Store)
	tenant, err := st.GetTenant(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "Tenant not found",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "TENANT_LOOKUP_FAILED",
			Error:   err.Error(),
		})
	}
	return c.JSON(TenantResponse{Success: true, Tenant: tenant})
}

func updateTenantHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	var reqBody UpdateTenantRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}

	st := c.Locals("store").(*store.Store)
	tenant, err := st.GetTenant(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "Tenant not found",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "TENANT_LOOKUP_FAILED",
			Error:   err.Error(),
		})
	}

	if reqBody.Name != nil {
		tenant.Name = *reqBody.Name
	}
	if reqBody.Domain != nil {
		tenant.Domain = *reqBody.Domain
	}
	if reqBody.Branding != nil {
		tenant.Branding = *reqBody.Branding
	}

	tenant, err = st.UpdateTenant(c.Context(), tenant)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "TENANT_UPDATE_FAILED",
			Error:   err.Error(),
		})
	}
	return c.JSON(TenantResponse{Success: true, Tenant: tenant})
}

// deleteTenantHandler removes a tenant record and, via cascade, its
// catalog and job history. Live sites should be torn down first with a
// delete provisioning job.
func deleteTenantHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	st := c.Locals("store").(*store.Store)
	if err := st.DeleteTenant(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "Tenant not found",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "TENANT_DELETE_FAILED",
			Error:   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

func createCategoryHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	var reqBody CreateCategoryRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}
	if reqBody.Name == "" || !slugPattern.MatchString(reqBody.Slug) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Fields 'slug' and 'name' are required",
		})
	}

	st := c.Locals("store").(*store.Store)
	category, err := st.CreateCategory(c.Context(), model.Category{
		ID:          uuid.New(),
		TenantID:    id,
		Slug:        reqBody.Slug,
		Name:        reqBody.Name,
		Description: reqBody.Description,
		Position:    reqBody.Position,
	})
	if err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Success: false,
				Code:    "SLUG_TAKEN",
				Error:   "Category slug is already in use",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "CATEGORY_CREATE_FAILED",
			Error:   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(CategoryResponse{Success: true, Category: category})
}

func listCategoriesHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	st := c.Locals("store").(*store.Store)
	snap, err := st.GetTenantSnapshot(c.Context(), id)
	if err != nil {
		return tenantSnapshotError(c, err)
	}
	return c.JSON(CategoryListResponse{Success: true, Categories: snap.Categories})
}

func createListingHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	var reqBody CreateListingRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}
	if reqBody.Name == "" || reqBody.Category == "" || !slugPattern.MatchString(reqBody.Slug) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Fields 'category', 'slug' and 'name' are required",
		})
	}

	st := c.Locals("store").(*store.Store)
	category, err := st.GetCategoryBySlug(c.Context(), id, reqBody.Category)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "Unknown category " + reqBody.Category,
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "CATEGORY_LOOKUP_FAILED",
			Error:   err.Error(),
		})
	}

	listing, err := st.CreateListing(c.Context(), model.Listing{
		ID:          uuid.New(),
		TenantID:    id,
		CategoryID:  category.ID,
		Slug:        reqBody.Slug,
		Name:        reqBody.Name,
		Description: reqBody.Description,
		Address:     reqBody.Address,
		Phone:       reqBody.Phone,
		Website:     reqBody.Website,
		Tags:        reqBody.Tags,
	})
	if err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Success: false,
				Code:    "SLUG_TAKEN",
				Error:   "Listing slug is already in use",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "LISTING_CREATE_FAILED",
			Error:   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(ListingResponse{Success: true, Listing: listing})
}

func listListingsHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	st := c.Locals("store").(*store.Store)
	snap, err := st.GetTenantSnapshot(c.Context(), id)
	if err != nil {
		return tenantSnapshotError(c, err)
	}
	return c.JSON(ListingListResponse{Success: true, Listings: snap.Listings})
}
