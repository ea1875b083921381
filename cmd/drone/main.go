// Command drone runs the drone role: it checks in with the broker,
// consumes the region's job stream, and executes jobs through a
// DNS-rebinding-resistant HTTP client.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/rocktick/rocktick/internal/config"
	"github.com/rocktick/rocktick/internal/drone"
	"github.com/rocktick/rocktick/internal/logging"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.New("drone", false)

	droneID := fmt.Sprintf("drone-%s", uuid.New().String()[:8])

	runtime, err := drone.NewRuntime(droneID, cfg.Drone, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start drone runtime")
	}
	defer runtime.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("drone_id", droneID).Str("region", cfg.Drone.Region).Msg("drone role started")
	runtime.Run(ctx)
	log.Info().Msg("drone role shutting down")
}
