// Command scheduler runs the stateless scheduler role: cron expansion,
// one-off materialization, retry planning, tenant token refill,
// retention sweeping, key rotation, and the three-scheduler workflow
// driver, each as an independent replica pool over one database.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rocktick/rocktick/internal/config"
	"github.com/rocktick/rocktick/internal/database"
	"github.com/rocktick/rocktick/internal/logging"
	"github.com/rocktick/rocktick/internal/scheduler"
	"github.com/rocktick/rocktick/internal/secrets"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.New("scheduler", false)

	db, err := database.NewPostgresConnection(&cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to auto-migrate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := scheduler.NewLoop(db, log, cfg.Scheduler.IdleDelay)

	loop.Start(ctx, &scheduler.CronExpander{
		BacklogCap: cfg.Scheduler.CronBacklogCap,
		Horizon:    cfg.Scheduler.CronHorizon,
	}, cfg.Scheduler.CronReplicas)

	loop.Start(ctx, &scheduler.OneOffMaterializer{}, cfg.Scheduler.OneOffReplicas)

	loop.Start(ctx, &scheduler.RetryPlanner{
		BaseDelay: cfg.Scheduler.RetryBaseDelay,
	}, cfg.Scheduler.RetryReplicas)

	loop.Start(ctx, &scheduler.TenantTokenRefill{}, cfg.Scheduler.TenantTokenReplicas)

	loop.Start(ctx, &scheduler.ScheduledRetention{}, cfg.Scheduler.RetentionReplicas, cfg.Scheduler.RetentionGracePeriod)
	loop.Start(ctx, &scheduler.OneOffRetention{}, cfg.Scheduler.RetentionReplicas, cfg.Scheduler.RetentionGracePeriod)

	loop.Start(ctx, &scheduler.WorkflowNoExecution{}, cfg.Scheduler.WorkflowNoExecReplicas)
	loop.Start(ctx, &scheduler.WorkflowPendingExecution{}, cfg.Scheduler.WorkflowPendingReplicas)
	loop.Start(ctx, &scheduler.WorkflowWaitedExecution{}, cfg.Scheduler.WorkflowWaitedReplicas)

	if cfg.Secrets.MasterKeys != "" {
		keyring, err := secrets.LoadKeyRingFromEnv(cfg.Secrets.MasterKeys)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load master keys")
		}
		loop.Start(ctx, &scheduler.KeyRotationScheduler{KeyRing: keyring}, 1)
	}

	log.Info().Msg("scheduler role started")
	<-ctx.Done()
	log.Info().Msg("scheduler role shutting down")
}
