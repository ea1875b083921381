// Package scheduler implements the scheduler runtime and every
// scheduler type rooted in it: cron expansion, one-off materialization,
// retry planning, tenant token refill, retention sweeping, key
// rotation, and the three-scheduler workflow driver.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Runner is one scheduler type's unit of work. RunOnce opens its own
// transaction, claims at most one candidate row with
// "SELECT ... FOR UPDATE SKIP LOCKED", performs derived reads/writes,
// and commits. Returning reachedEnd=true tells the loop to sleep
// idleDelay before trying again; returning false means there may be
// more work immediately available.
type Runner interface {
	Name() string
	RunOnce(ctx context.Context, tx *gorm.DB) (reachedEnd bool, err error)
}

// Loop drives N independent goroutines for one Runner, each looping
// RunOnce inside its own transaction. No state is shared between loop
// iterations or between goroutines: all synchronization is via the
// database.
type Loop struct {
	db        *gorm.DB
	log       zerolog.Logger
	idleDelay time.Duration
}

// NewLoop constructs a loop driver bound to db, logging under the given
// logger with idleDelay between empty polls.
func NewLoop(db *gorm.DB, log zerolog.Logger, idleDelay time.Duration) *Loop {
	return &Loop{db: db, log: log, idleDelay: idleDelay}
}

// Start spawns replicas independent goroutines running r.RunOnce in a
// tight cycle until ctx is cancelled. An optional initialDelay (e.g.
// the retention sweepers' grace period) is observed once before each
// replica's first tick.
func (l *Loop) Start(ctx context.Context, r Runner, replicas int, initialDelay ...time.Duration) {
	var delay time.Duration
	if len(initialDelay) > 0 {
		delay = initialDelay[0]
	}
	for i := 0; i < replicas; i++ {
		go l.runReplica(ctx, r, i, delay)
	}
}

func (l *Loop) runReplica(ctx context.Context, r Runner, replica int, initialDelay time.Duration) {
	logger := l.log.With().Str("scheduler", r.Name()).Int("replica", replica).Logger()

	if initialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialDelay):
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var reachedEnd bool
		err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			reachedEnd, txErr = r.RunOnce(ctx, tx)
			return txErr
		})
		if err != nil {
			logger.Error().Err(err).Msg("scheduler tick failed, transaction rolled back")
			reachedEnd = true
		}

		if reachedEnd {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.idleDelay):
			}
		}
	}
}
