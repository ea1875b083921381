package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/service"
)

// OneOffJobHandler handles one-off job HTTP requests.
type OneOffJobHandler struct {
	svc *service.OneOffJobService
}

func NewOneOffJobHandler(svc *service.OneOffJobService) *OneOffJobHandler {
	return &OneOffJobHandler{svc: svc}
}

// Create creates a one-off job
// @Summary Create a one-off job
// @Description Schedule a single HTTP call for a future point in time
// @Tags one-off-jobs
// @Accept json
// @Produce json
// @Param request body models.CreateOneOffJobRequest true "One-off job request"
// @Success 201 {object} Response{data=models.OneOffJob}
// @Failure 400 {object} Response
// @Router /api/v1/one-off-jobs [post]
func (h *OneOffJobHandler) Create(c *fiber.Ctx) error {
	var req models.CreateOneOffJobRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	job, err := h.svc.Create(c.Context(), req)
	if err != nil {
		return BadRequest(c, err.Error())
	}
	return Created(c, job)
}

// Get retrieves a one-off job by ID
// @Summary Get a one-off job
// @Tags one-off-jobs
// @Produce json
// @Param id path string true "One-off job ID"
// @Success 200 {object} Response{data=models.OneOffJob}
// @Failure 404 {object} Response
// @Router /api/v1/one-off-jobs/{id} [get]
func (h *OneOffJobHandler) Get(c *fiber.Ctx) error {
	job, err := h.svc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return NotFound(c, "one-off job not found")
	}
	return Success(c, job)
}

// Update replaces a one-off job's request and fire time
// @Summary Update a one-off job
// @Description Replace the frozen request and fire time; any not-yet-dispatched scheduled row is dropped and re-materialized
// @Tags one-off-jobs
// @Accept json
// @Produce json
// @Param id path string true "One-off job ID"
// @Param request body models.UpdateOneOffJobRequest true "One-off job update"
// @Success 200 {object} Response{data=models.OneOffJob}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/one-off-jobs/{id} [patch]
func (h *OneOffJobHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateOneOffJobRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	job, err := h.svc.Update(c.Context(), c.Params("id"), req)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(c, "one-off job not found")
	}
	if err != nil {
		return BadRequest(c, err.Error())
	}
	return Success(c, job)
}

// List lists one-off jobs
// @Summary List one-off jobs
// @Tags one-off-jobs
// @Produce json
// @Param tenant_id query string false "Filter by tenant"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.OneOffJob}
// @Router /api/v1/one-off-jobs [get]
func (h *OneOffJobHandler) List(c *fiber.Ctx) error {
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

// Delete deletes a one-off job
// @Summary Delete a one-off job
// @Tags one-off-jobs
// @Param id path string true "One-off job ID"
// @Success 204
// @Router /api/v1/one-off-jobs/{id} [delete]
func (h *OneOffJobHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.Context(), c.Params("id")); err != nil {
		return InternalError(c, err.Error())
	}
	return NoContent(c)
}
