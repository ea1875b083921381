package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/service"
)

// TenantHandler handles tenant-related HTTP requests.
type TenantHandler struct {
	tenantService *service.TenantService
}

func NewTenantHandler(tenantService *service.TenantService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

// Create creates a new tenant
// @Summary Create a tenant
// @Description Create a new tenant with an admission-control token budget
// @Tags tenants
// @Accept json
// @Produce json
// @Param request body models.CreateTenantRequest true "Tenant creation request"
// @Success 201 {object} Response{data=models.Tenant}
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/tenants [post]
func (h *TenantHandler) Create(c *fiber.Ctx) error {
	var req models.CreateTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	tenant, err := h.tenantService.Create(c.Context(), &req)
	if err != nil {
		return InternalError(c, err.Error())
	}
	return Created(c, tenant)
}

// Get retrieves a tenant by ID
// @Summary Get a tenant
// @Tags tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} Response{data=models.Tenant}
// @Failure 404 {object} Response
// @Router /api/v1/tenants/{id} [get]
func (h *TenantHandler) Get(c *fiber.Ctx) error {
	tenant, err := h.tenantService.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return NotFound(c, "tenant not found")
	}
	return Success(c, tenant)
}

// List lists tenants
// @Summary List tenants
// @Tags tenants
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.Tenant}
// @Router /api/v1/tenants [get]
func (h *TenantHandler) List(c *fiber.Ctx) error {
	result, err := h.tenantService.List(c.Context(), c.QueryInt("page", 1), c.QueryInt("page_size", 20))
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

// UpdateTokenPolicyRequest adjusts a tenant's admission-control budget.
type UpdateTokenPolicyRequest struct {
	MaxTokens    int32 `json:"max_tokens,omitempty"`
	TokensPerDay int32 `json:"tokens_per_day,omitempty"`
}

// UpdateTokenPolicy updates a tenant's token budget and refill cadence
// @Summary Update a tenant's token policy
// @Tags tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param request body UpdateTokenPolicyRequest true "Token policy update"
// @Success 200 {object} Response{data=models.Tenant}
// @Failure 404 {object} Response
// @Router /api/v1/tenants/{id}/token-policy [patch]
func (h *TenantHandler) UpdateTokenPolicy(c *fiber.Ctx) error {
	var req UpdateTokenPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	tenant, err := h.tenantService.UpdateTokenPolicy(c.Context(), c.Params("id"), req.MaxTokens, req.TokensPerDay)
	if err != nil {
		return NotFound(c, "tenant not found")
	}
	return Success(c, tenant)
}

// Delete deletes a tenant
// @Summary Delete a tenant
// @Tags tenants
// @Param id path string true "Tenant ID"
// @Success 204
// @Failure 500 {object} Response
// @Router /api/v1/tenants/{id} [delete]
func (h *TenantHandler) Delete(c *fiber.Ctx) error {
	if err := h.tenantService.Delete(c.Context(), c.Params("id")); err != nil {
		return InternalError(c, err.Error())
	}
	return NoContent(c)
}
