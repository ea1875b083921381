// Command api runs the CRUD API role: tenant, one-off job, cron job,
// and workflow management, plus read-only visibility into scheduled
// jobs and job executions.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rocktick/rocktick/internal/config"
	"github.com/rocktick/rocktick/internal/database"
	"github.com/rocktick/rocktick/internal/handler"
	"github.com/rocktick/rocktick/internal/logging"
	"github.com/rocktick/rocktick/internal/repository"
	"github.com/rocktick/rocktick/internal/router"
	"github.com/rocktick/rocktick/internal/service"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.New("api", false)

	db, err := database.NewPostgresConnection(&cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to auto-migrate")
	}

	tenantRepo := repository.NewTenantRepository(db)
	oneOffRepo := repository.NewOneOffJobRepository(db)
	cronRepo := repository.NewCronJobRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	scheduledRepo := repository.NewScheduledRepository(db)
	executionRepo := repository.NewExecutionRepository(db)

	handlers := &router.Handlers{
		Health:       handler.NewHealthHandler(db),
		Tenant:       handler.NewTenantHandler(service.NewTenantService(tenantRepo)),
		OneOffJob:    handler.NewOneOffJobHandler(service.NewOneOffJobService(oneOffRepo)),
		CronJob:      handler.NewCronJobHandler(service.NewCronJobService(cronRepo)),
		Workflow:     handler.NewWorkflowHandler(service.NewWorkflowService(workflowRepo)),
		ScheduledJob: handler.NewScheduledJobHandler(service.NewScheduledJobService(scheduledRepo)),
		Execution:    handler.NewJobExecutionHandler(service.NewJobExecutionService(executionRepo)),
	}

	app := fiber.New(fiber.Config{
		AppName:      "Rocktick API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	})
	router.SetupRouter(app, handlers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info().Str("addr", addr).Msg("api role started")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("api role shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("fiber shutdown error")
	}
}
