package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"

	"github.com/rocktick/rocktick/internal/handler"
)

// Handlers contains all HTTP handlers wired into the API process.
type Handlers struct {
	Health       *handler.HealthHandler
	Tenant       *handler.TenantHandler
	OneOffJob    *handler.OneOffJobHandler
	CronJob      *handler.CronJobHandler
	Workflow     *handler.WorkflowHandler
	ScheduledJob *handler.ScheduledJobHandler
	Execution    *handler.JobExecutionHandler
}

// SetupRouter configures the Fiber router.
func SetupRouter(app *fiber.App, h *Handlers) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", h.Health.Health)
	app.Get("/ready", h.Health.Ready)
	app.Get("/live", h.Health.Live)

	v1 := app.Group("/api/v1")

	tenants := v1.Group("/tenants")
	tenants.Post("/", h.Tenant.Create)
	tenants.Get("/", h.Tenant.List)
	tenants.Get("/:id", h.Tenant.Get)
	tenants.Patch("/:id/token-policy", h.Tenant.UpdateTokenPolicy)
	tenants.Delete("/:id", h.Tenant.Delete)

	oneOff := v1.Group("/one-off-jobs")
	oneOff.Post("/", h.OneOffJob.Create)
	oneOff.Get("/", h.OneOffJob.List)
	oneOff.Get("/:id", h.OneOffJob.Get)
	oneOff.Patch("/:id", h.OneOffJob.Update)
	oneOff.Delete("/:id", h.OneOffJob.Delete)

	cronJobs := v1.Group("/cron-jobs")
	cronJobs.Post("/", h.CronJob.Create)
	cronJobs.Get("/", h.CronJob.List)
	cronJobs.Get("/:id", h.CronJob.Get)
	cronJobs.Patch("/:id/error", h.CronJob.ClearError)
	cronJobs.Patch("/:id", h.CronJob.Update)
	cronJobs.Delete("/:id", h.CronJob.Delete)

	workflows := v1.Group("/workflows")
	workflows.Post("/", h.Workflow.Create)
	workflows.Get("/", h.Workflow.List)
	workflows.Get("/:id", h.Workflow.Get)
	workflows.Get("/:id/executions", h.Workflow.Executions)

	scheduledJobs := v1.Group("/scheduled-jobs")
	scheduledJobs.Get("/", h.ScheduledJob.List)
	scheduledJobs.Get("/:id/verify", h.ScheduledJob.Verify)
	scheduledJobs.Get("/:id", h.ScheduledJob.Get)

	jobExecutions := v1.Group("/job-executions")
	jobExecutions.Get("/", h.Execution.List)
	jobExecutions.Get("/:id", h.Execution.Get)
	jobExecutions.Get("/:id/response/:response_id", h.Execution.Response)
}
