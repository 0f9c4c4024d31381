package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"sitewright/internal/provision"
)

// tenantSnapshotError maps snapshot load failures onto the envelope.
func tenantSnapshotError(c *fiber.Ctx, err error) error {
	if errors.Is(err, provision.ErrTenantNotFound) {
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
