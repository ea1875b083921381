// Command broker runs the broker role: the GetJobs dispatch loop, the
// RecordExecution recorder, and the lease reaper, exposed over the
// drone-facing gRPC surface.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/rocktick/rocktick/internal/broker"
	"github.com/rocktick/rocktick/internal/config"
	"github.com/rocktick/rocktick/internal/database"
	"github.com/rocktick/rocktick/internal/logging"
	"github.com/rocktick/rocktick/internal/secrets"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.New("broker", false)

	db, err := database.NewPostgresConnection(&cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to auto-migrate")
	}

	keyring, err := secrets.LoadKeyRingFromEnv(cfg.Secrets.MasterKeys)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load master keys")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	liveness := broker.NewLivenessCache(redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reaper := &broker.Reaper{DB: db, Log: log, Interval: cfg.Broker.ReaperInterval, Slack: cfg.Broker.ReaperSlack}
	go reaper.Start(ctx)

	svc := broker.NewService(db, log, cfg.Broker, keyring, liveness)

	addr := fmt.Sprintf(":%d", cfg.Broker.GRPCPort)
	log.Info().Str("addr", addr).Msg("broker role started")
	if err := broker.Serve(ctx, addr, svc); err != nil {
		log.Fatal().Err(err).Msg("broker gRPC server stopped")
	}
	log.Info().Msg("broker role shutting down")
}
