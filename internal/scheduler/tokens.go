package scheduler

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TenantTokenRefill periodically replenishes per-tenant admission
// budgets.
type TenantTokenRefill struct{}

func (t *TenantTokenRefill) Name() string { return "tenant_token_refill" }

type tenantTokenCandidate struct {
	ID            string
	Tokens        int32
	MaxTokens     int32
	Increment     int32
	PeriodDays    int32
	PeriodMicros  int64
	NextIncrement time.Time
}

func (t *TenantTokenRefill) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var cand tenantTokenCandidate
	err := tx.Raw(`
		SELECT id, tokens, max_tokens, increment, period_days, period_micros, next_increment
		FROM tenants
		WHERE next_increment < now() AND tokens < max_tokens
		LIMIT 1 FOR UPDATE SKIP LOCKED
	`).Scan(&cand).Error
	if err != nil {
		return false, fmt.Errorf("tenant token refill: candidate query: %w", err)
	}
	if cand.ID == "" {
		return true, nil
	}

	newTokens := cand.Tokens + cand.Increment
	if newTokens > cand.MaxTokens {
		newTokens = cand.MaxTokens
	}

	period := time.Duration(cand.PeriodDays)*24*time.Hour + time.Duration(cand.PeriodMicros)*time.Microsecond
	now := time.Now().UTC()
	timeSinceScheduled := now.Sub(cand.NextIncrement)

	var nextTime time.Time
	switch {
	case newTokens == cand.MaxTokens:
		wait := period
		if 5*time.Minute > wait {
			wait = 5 * time.Minute
		}
		nextTime = now.Add(wait)
	case timeSinceScheduled > 5*time.Minute:
		nextTime = now.Add(period)
	default:
		nextTime = cand.NextIncrement.Add(period)
	}

	return false, tx.Exec(`
		UPDATE tenants SET tokens = ?, next_increment = ? WHERE id = ?
	`, newTokens, nextTime, cand.ID).Error
}
