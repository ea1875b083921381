package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/service"
)

// ScheduledJobHandler exposes read-only visibility into scheduled_jobs,
// the system-owned dispatch queue.
type ScheduledJobHandler struct {
	svc *service.ScheduledJobService
}

func NewScheduledJobHandler(svc *service.ScheduledJobService) *ScheduledJobHandler {
	return &ScheduledJobHandler{svc: svc}
}

// Get retrieves a scheduled job by ID
// @Summary Get a scheduled job
// @Tags scheduled-jobs
// @Produce json
// @Param id path string true "Scheduled job ID"
// @Success 200 {object} Response{data=models.ScheduledJob}
// @Failure 404 {object} Response
// @Router /api/v1/scheduled-jobs/{id} [get]
func (h *ScheduledJobHandler) Get(c *fiber.Ctx) error {
	job, err := h.svc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return NotFound(c, "scheduled job not found")
	}
	return Success(c, job)
}

// Verify lets a webhook receiver confirm an incoming request came from
// this system
// @Summary Verify a received Rocktick-Job-Id
// @Description Pass the value of a request's Rocktick-Job-Id header; verified=true means a dispatch with that id really originated here
// @Tags scheduled-jobs
// @Produce json
// @Param id path string true "Value of the request's Rocktick-Job-Id header"
// @Success 200 {object} Response
// @Router /api/v1/scheduled-jobs/{id}/verify [get]
func (h *ScheduledJobHandler) Verify(c *fiber.Ctx) error {
	job, err := h.svc.GetByID(c.Context(), c.Params("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Success(c, map[string]bool{"verified": false})
	}
	if err != nil {
		return InternalError(c, err.Error())
	}
	return Success(c, map[string]bool{"verified": job.LockNonce != nil})
}

// List lists scheduled jobs
// @Summary List scheduled jobs
// @Tags scheduled-jobs
// @Produce json
// @Param tenant_id query string false "Filter by tenant"
// @Param region query string false "Filter by region"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.ScheduledJob}
// @Router /api/v1/scheduled-jobs [get]
func (h *ScheduledJobHandler) List(c *fiber.Ctx) error {
	var tenantID *string
	if v := c.Query("tenant_id"); v != "" {
		tenantID = &v
	}

	filter := models.ScheduledJobFilter{
		TenantID: tenantID,
		Region:   c.Query("region"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}

	result, err := h.svc.List(c.Context(), filter)
	if err != nil {
		return InternalError(c, err.Error())
	}
	return SuccessWithMeta(c, result.Items, &Meta{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
	})
}
