package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rocktick/rocktick/internal/service"
)

// JobExecutionHandler exposes read-only visibility into job_executions,
// the immutable record the broker's recorder appends to.
type JobExecutionHandler struct {
	svc *service.JobExecutionService
}

func NewJobExecutionHandler(svc *service.JobExecutionService) *JobExecutionHandler {
	return &JobExecutionHandler{svc: svc}
}

// Get retrieves a job execution by ID
// @Summary Get a job execution
// @Tags job-executions
// @Produce json
// @Param id path string true "Job execution ID"
// @Success 200 {object} Response{data=models.JobExecution}
// @Failure 404 {object} Response
// @Router /api/v1/job-executions/{id} [get]
func (h *JobExecutionHandler) Get(c *fiber.Ctx) error {
	exec, err := h.svc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return NotFound(c, "job execution not found")
	}
	return Success(c, exec)
}

// List lists job executions
// @Summary List job executions
// @Tags job-executions
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.JobExecution}
// @Router /api/v1/job-executions [get]
func (h *JobExecutionHandler) List(c *fiber.Ctx) error {
	result, err := h.svc.List(c.Context(), c.QueryInt("page", 1), c.QueryInt("page_size", 20))
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

// Response retrieves the frozen HTTP response an execution recorded
// @Summary Get a job execution's response
// @Tags job-executions
// @Produce json
// @Param id path string true "Job execution ID"
// @Param response_id path string true "HTTP response ID"
// @Success 200 {object} Response{data=models.HttpResponse}
// @Failure 404 {object} Response
// @Router /api/v1/job-executions/{id}/response/{response_id} [get]
func (h *JobExecutionHandler) Response(c *fiber.Ctx) error {
	resp, err := h.svc.Response(c.Context(), c.Params("response_id"))
	if err != nil {
		return NotFound(c, "response not found")
	}
	return Success(c, resp)
}
