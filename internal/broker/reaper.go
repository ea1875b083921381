package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Reaper recovers leases abandoned by a stalled or crashed drone. The
// slack dominates clock skew and in-flight drone->broker result
// transit.
type Reaper struct {
	DB       *gorm.DB
	Log      zerolog.Logger
	Interval time.Duration
	Slack    time.Duration
}

// Start runs the reap statement every Interval until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.Log.Error().Err(err).Msg("lease reaper tick failed")
			}
		}
	}
}

// RunOnce runs one reap-and-refund pass in a single transaction.
func (r *Reaper) RunOnce(ctx context.Context) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slackSeconds := int64(r.Slack.Seconds())

		var refunds []struct {
			TenantID string
			Cnt      int64
		}
		err := tx.Raw(`
			WITH reaped AS (
				UPDATE scheduled_jobs sj
				SET lock_nonce = NULL
				FROM (
					SELECT s.id AS id FROM scheduled_jobs s
					LEFT JOIN tenants t ON t.id = s.tenant_id
					WHERE s.lock_nonce IS NOT NULL AND s.execution_id IS NULL
						AND to_timestamp(s.lock_nonce)
							+ make_interval(secs => COALESCE(s.timeout_ms, t.max_timeout_ms, 120000) / 1000.0)
							+ make_interval(secs => ?)
						< now()
					FOR UPDATE OF s SKIP LOCKED
				) candidates
				WHERE sj.id = candidates.id
				RETURNING sj.id AS id, sj.tenant_id AS tenant_id
			)
			SELECT tenant_id, count(*) AS cnt FROM reaped WHERE tenant_id IS NOT NULL GROUP BY tenant_id
		`, slackSeconds).Scan(&refunds).Error
		if err != nil {
			return fmt.Errorf("reaper: reap query: %w", err)
		}

		for _, refund := range refunds {
			if err := tx.Exec(`
				UPDATE tenants SET tokens = LEAST(max_tokens, tokens + ?) WHERE id = ?
			`, refund.Cnt, refund.TenantID).Error; err != nil {
				return fmt.Errorf("reaper: refund tenant %s: %w", refund.TenantID, err)
			}
		}
		return nil
	})
}
