package scheduler

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/idgen"
)

// RetryPlanner enqueues a successor with exponential backoff for every
// failed, non-workflow execution that has remaining retry budget and no
// existing successor. Backoff is true exponentiation:
// base * 2^attemptsMade.
type RetryPlanner struct {
	BaseDelay time.Duration
}

func (r *RetryPlanner) Name() string { return "retry_planner" }

type retryCandidate struct {
	ID           string
	Region       string
	TenantID     *string
	RequestID    string
	OneOffJobID  *string
	CronJobID    *string
	TimeoutMs    *int32
	MaxRetries   int32
	MaxRespBytes *int64
	ExecutedAt   time.Time
}

func (r *RetryPlanner) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var cand retryCandidate
	err := tx.Raw(`
		SELECT
			sched.id AS id,
			sched.region AS region,
			sched.tenant_id AS tenant_id,
			sched.request_id AS request_id,
			sched.one_off_job_id AS one_off_job_id,
			sched.cron_job_id AS cron_job_id,
			sched.timeout_ms AS timeout_ms,
			sched.max_retries AS max_retries,
			sched.max_response_bytes AS max_resp_bytes,
			exec.executed_at AS executed_at
		FROM scheduled_jobs sched
		JOIN job_executions exec ON exec.id = sched.execution_id
		WHERE sched.execution_id IS NOT NULL
			AND exec.success = false
			AND sched.max_retries > 0
			AND sched.workflow_id IS NULL
			AND sched.workflow_execution_id IS NULL
			AND NOT EXISTS (
				SELECT 1 FROM scheduled_jobs successor WHERE successor.retry_for_id = sched.id
			)
		LIMIT 1 FOR UPDATE OF sched SKIP LOCKED
	`).Scan(&cand).Error
	if err != nil {
		return false, fmt.Errorf("retry planner: candidate query: %w", err)
	}
	if cand.ID == "" {
		return true, nil
	}

	// attempts_made counts the retry rows strictly before the candidate
	// in its chain: the failed original attempt and the first retry both
	// get the base delay, and the exponent grows from there.
	var attemptsMade int64
	err = tx.Raw(`
		WITH RECURSIVE retry_chain AS (
			SELECT id, retry_for_id FROM scheduled_jobs WHERE id = ?
			UNION ALL
			SELECT sched.id, sched.retry_for_id
			FROM scheduled_jobs sched
			JOIN retry_chain chain ON sched.id = chain.retry_for_id
		)
		SELECT COUNT(*) FROM retry_chain WHERE retry_for_id IS NOT NULL AND id <> ?
	`, cand.ID, cand.ID).Scan(&attemptsMade).Error
	if err != nil {
		return false, fmt.Errorf("retry planner: attempts-made query: %w", err)
	}

	backoff := backoffDuration(r.BaseDelay, attemptsMade)
	scheduledAt := cand.ExecutedAt.Add(backoff)

	id := idgen.GenerateForTime("scheduled_job", scheduledAt)
	hash := idgen.ShardHash(id)
	remainingRetries := cand.MaxRetries - 1

	err = tx.Exec(`
		INSERT INTO scheduled_jobs
			(id, hash, region, tenant_id, one_off_job_id, cron_job_id, retry_for_id,
			 scheduled_at, request_id, timeout_ms, max_retries, max_response_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, hash, cand.Region, cand.TenantID, cand.OneOffJobID, cand.CronJobID, cand.ID,
		scheduledAt, cand.RequestID, cand.TimeoutMs, remainingRetries, cand.MaxRespBytes).Error
	if err != nil {
		return false, fmt.Errorf("retry planner: insert successor: %w", err)
	}
	return false, nil
}

// backoffDuration computes base * 2^attemptsMade: true exponentiation,
// not the bitwise-xor the original source's `2 ^ attempts_made` literally
// reads as.
func backoffDuration(base time.Duration, attemptsMade int64) time.Duration {
	if attemptsMade < 0 {
		attemptsMade = 0
	}
	return base * time.Duration(int64(1)<<uint(attemptsMade))
}
