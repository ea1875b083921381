package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthHandler handles health check endpoints. The API process has no
// in-process scheduler to report on in this architecture: scheduler,
// broker, and drone are separate roles, so health here is just
// database connectivity.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health returns the service health status
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Failure 503 {object} Response
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{
			Success: false,
			Error:   &ErrorInfo{Code: "DATABASE_ERROR", Message: "database connection error"},
		})
	}
	if err := sqlDB.Ping(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{
			Success: false,
			Error:   &ErrorInfo{Code: "DATABASE_ERROR", Message: "database ping failed"},
		})
	}
	return Success(c, map[string]string{"status": "healthy", "database": "connected"})
}

// Ready returns the service readiness status
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Failure 503 {object} Response
// @Router /ready [get]
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	return h.Health(c)
}

// Live returns the liveness status
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Router /live [get]
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return Success(c, map[string]string{"status": "alive"})
}
