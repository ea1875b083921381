package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/service"
)

// WorkflowHandler handles workflow HTTP requests.
type WorkflowHandler struct {
	svc *service.WorkflowService
}

func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// Create starts a new workflow
// @Summary Start a workflow
// @Description Start a long-lived orchestration driven by a remote implementation
// @Tags workflows
// @Accept json
// @Produce json
// @Param request body models.CreateWorkflowRequest true "Workflow request"
// @Success 201 {object} Response{data=models.Workflow}
// @Failure 400 {object} Response
// @Router /api/v1/workflows [post]
func (h *WorkflowHandler) Create(c *fiber.Ctx) error {
	var req models.CreateWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	wf, err := h.svc.Create(c.Context(), req)
	if err != nil {
		return BadRequest(c, err.Error())
	}
	return Created(c, wf)
}

// Get retrieves a workflow by ID
// @Summary Get a workflow
// @Tags workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} Response{data=models.Workflow}
// @Failure 404 {object} Response
// @Router /api/v1/workflows/{id} [get]
func (h *WorkflowHandler) Get(c *fiber.Ctx) error {
	wf, err := h.svc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return NotFound(c, "workflow not found")
	}
	return Success(c, wf)
}

// List lists workflows
// @Summary List workflows
// @Tags workflows
// @Produce json
// @Param tenant_id query string false "Filter by tenant"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.Workflow}
// @Router /api/v1/workflows [get]
func (h *WorkflowHandler) List(c *fiber.Ctx) error {
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

// Executions lists a workflow's execution trail
// @Summary List a workflow's executions
// @Tags workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} Response{data=[]models.WorkflowExecution}
// @Router /api/v1/workflows/{id}/executions [get]
func (h *WorkflowHandler) Executions(c *fiber.Ctx) error {
	execs, err := h.svc.Executions(c.Context(), c.Params("id"))
	if err != nil {
		return InternalError(c, err.Error())
	}
	return Success(c, execs)
}
