package http

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"sitewright/internal/branding"
	"sitewright/internal/ingest"
	"sitewright/internal/store"
)

// importCSVHandler bulk-imports catalog data from a multipart upload.
// The form field "kind" selects "categories" or "listings"; the file
// goes in field "file". Rows that fail are skipped and reported in the
// summary, the request itself still succeeds.
func importCSVHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	kind := c.FormValue("kind")
	if kind != "categories" && kind != "listings" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Field 'kind' must be 'categories' or 'listings'",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Missing multipart file field 'file'",
		})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "IMPORT_FAILED",
			Error:   err.Error(),
		})
	}
	defer file.Close()

	ing := c.Locals("ingest").(*ingest.Ingestor)

	var summary *ingest.Summary
	if kind == "categories" {
		summary, err = ing.ImportCategories(c.Context(), id, file)
	} else {
		summary, err = ing.ImportListings(c.Context(), id, file)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "IMPORT_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(fiber.Map{"success": true, "summary": summary})
}

// brandingImportHandler extracts branding hints from a URL the tenant
// supplies. The result is returned for review, not saved.
func brandingImportHandler(c *fiber.Ctx) error {
	if _, ok := tenantIDParam(c); !ok {
		return nil
	}

	var reqBody BrandingImportRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}
	if _, err := url.ParseRequestURI(reqBody.URL); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Field 'url' must be a valid absolute URL",
		})
	}

	imp := c.Locals("branding").(*branding.Importer)
	result, err := imp.Import(c.Context(), reqBody.URL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Success: false,
			Code:    "BRANDING_IMPORT_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(BrandingImportResponse{Success: true, Branding: result})
}

// createAPIKeyHandler mints a new API key. The raw key is returned
// exactly once; only its hash is stored.
func createAPIKeyHandler(c *fiber.Ctx) error {
	var reqBody CreateAPIKeyRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}
	if reqBody.Label == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Missing required field 'label'",
		})
	}

	var tenantID *uuid.UUID
	if reqBody.TenantID != "" {
		parsed, err := uuid.Parse(reqBody.TenantID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid tenant id",
			})
		}
		tenantID = &parsed
	}

	st := c.Locals("store").(*store.Store)
	raw, key, err := st.CreateRandomAPIKey(c.Context(), reqBody.Label, reqBody.IsAdmin, reqBody.RateLimitPerMinute, tenantID)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "API_KEY_CREATE_FAILED",
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(CreateAPIKeyResponse{
		Success: true,
		ID:      key.ID.String(),
		Key:     raw,
		Label:   key.Label,
		IsAdmin: key.IsAdmin,
	})
}
