package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"sitewright/internal/provision"
	"sitewright/internal/store"
)

// publishHandler enqueues a provisioning job for the tenant. The job
// type defaults to "create"; "update", "republish" and "delete" select
// the shorter pipelines. The response is a 202 with the job id; the
// caller polls GET /v1/jobs/:id.
func publishHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	var reqBody PublishRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&reqBody); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Code:    "BAD_REQUEST_INVALID_JSON",
				Error:   "Bad request, malformed JSON",
			})
		}
	}

	jobType, err := provision.ParseJobType(reqBody.Type)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   err.Error(),
		})
	}

	// The tenant must exist before a job is queued for it.
	st := c.Locals("store").(*store.Store)
	if _, err := st.GetTenant(c.Context(), id); err != nil {
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

	svc := c.Locals("provision").(*provision.Service)
	jobID, err := svc.CreateProvisioningJob(c.Context(), id, jobType)
	if err != nil {
		if errors.Is(err, provision.ErrTenantBusy) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Success: false,
				Code:    "TENANT_BUSY",
				Error:   "Tenant already has an active provisioning job",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_CREATE_FAILED",
			Error:   err.Error(),
		})
	}

	if loggerVal := c.Locals("logger"); loggerVal != nil {
		if lg, ok := loggerVal.(interface{ Info(msg string, args ...any) }); ok {
			lg.Info("provision_enqueued",
				"job_id", jobID.String(),
				"tenant_id", id.String(),
				"type", string(jobType),
			)
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(PublishResponse{
		Success: true,
		JobID:   jobID.String(),
		URL:     c.Protocol() + "://" + c.Hostname() + "/v1/jobs/" + jobID.String(),
	})
}

func jobStatusHandler(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid job id",
		})
	}

	svc := c.Locals("provision").(*provision.Service)
	status, err := svc.GetJobStatus(c.Context(), jobID)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_LOOKUP_FAILED",
			Error:   err.Error(),
		})
	}
	if status == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false,
			Code:    "NOT_FOUND",
			Error:   "Provisioning job not found",
		})
	}
	return c.JSON(JobStatusResponse{Success: true, Job: status})
}

// cancelJobHandler requests cooperative cancellation. Already-terminal
// jobs report cancelled=false with a 200; cancellation is not an error.
func cancelJobHandler(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid job id",
		})
	}

	svc := c.Locals("provision").(*provision.Service)
	cancelled, err := svc.CancelJob(c.Context(), jobID)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_CANCEL_FAILED",
			Error:   err.Error(),
		})
	}
	return c.JSON(CancelResponse{Success: true, Cancelled: cancelled})
}

func tenantJobsHandler(c *fiber.Ctx) error {
	id, ok := tenantIDParam(c)
	if !ok {
		return nil
	}

	svc := c.Locals("provision").(*provision.Service)
	jobs, err := svc.GetTenantJobs(c.Context(), id)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_LIST_FAILED",
			Error:   err.Error(),
		})
	}

	out := make([]*provision.JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, provision.FormatStatus(j))
	}
	return c.JSON(JobListResponse{Success: true, Jobs: out})
}
