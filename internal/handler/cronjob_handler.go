package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/service"
)

// CronJobHandler handles cron job HTTP requests.
type CronJobHandler struct {
	svc *service.CronJobService
}

func NewCronJobHandler(svc *service.CronJobService) *CronJobHandler {
	return &CronJobHandler{svc: svc}
}

// Create creates a cron job
// @Summary Create a cron job
// @Description Schedule a recurring HTTP call
// @Tags cron-jobs
// @Accept json
// @Produce json
// @Param request body models.CreateCronJobRequest true "Cron job request"
// @Success 201 {object} Response{data=models.CronJob}
// @Failure 400 {object} Response
// @Router /api/v1/cron-jobs [post]
func (h *CronJobHandler) Create(c *fiber.Ctx) error {
	var req models.CreateCronJobRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	job, err := h.svc.Create(c.Context(), req)
	if err != nil {
		return BadRequest(c, err.Error())
	}
	return Created(c, job)
}

// Get retrieves a cron job by ID
// @Summary Get a cron job
// @Tags cron-jobs
// @Produce json
// @Param id path string true "Cron job ID"
// @Success 200 {object} Response{data=models.CronJob}
// @Failure 404 {object} Response
// @Router /api/v1/cron-jobs/{id} [get]
func (h *CronJobHandler) Get(c *fiber.Ctx) error {
	job, err := h.svc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return NotFound(c, "cron job not found")
	}
	return Success(c, job)
}

// Update replaces a cron job's schedule and request
// @Summary Update a cron job
// @Description Replace the schedule, request, and retry policy; updates always clear the job's error so expansion resumes
// @Tags cron-jobs
// @Accept json
// @Produce json
// @Param id path string true "Cron job ID"
// @Param request body models.UpdateCronJobRequest true "Cron job update"
// @Success 200 {object} Response{data=models.CronJob}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/cron-jobs/{id} [patch]
func (h *CronJobHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateCronJobRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	job, err := h.svc.Update(c.Context(), c.Params("id"), req)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(c, "cron job not found")
	}
	if err != nil {
		return BadRequest(c, err.Error())
	}
	return Success(c, job)
}

// List lists cron jobs
// @Summary List cron jobs
// @Tags cron-jobs
// @Produce json
// @Param tenant_id query string false "Filter by tenant"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.CronJob}
// @Router /api/v1/cron-jobs [get]
func (h *CronJobHandler) List(c *fiber.Ctx) error {
	var tenantID *string
	if v := c.Query("tenant_id"); v != "" {
		tenantID = &v
	}

	result, err := h.svc.List(c.Context(), tenantID, c.QueryInt("page", 1), c.QueryInt("page_size", 20))
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

// ClearError re-enables expansion of a cron job without touching its
// definition
// @Summary Clear a cron job's error
// @Tags cron-jobs
// @Param id path string true "Cron job ID"
// @Success 204
// @Router /api/v1/cron-jobs/{id}/error [patch]
func (h *CronJobHandler) ClearError(c *fiber.Ctx) error {
	if err := h.svc.ClearError(c.Context(), c.Params("id")); err != nil {
		return InternalError(c, err.Error())
	}
	return NoContent(c)
}

// Delete deletes a cron job
// @Summary Delete a cron job
// @Tags cron-jobs
// @Param id path string true "Cron job ID"
// @Success 204
// @Router /api/v1/cron-jobs/{id} [delete]
func (h *CronJobHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.Context(), c.Params("id")); err != nil {
		return InternalError(c, err.Error())
	}
	return NoContent(c)
}
