package scheduler

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
)

// ScheduledRetention soft-deletes and redacts a scheduled job's request
// and response payloads once its tenant's retention window has elapsed.
type ScheduledRetention struct{}

func (s *ScheduledRetention) Name() string { return "scheduled_retention" }

type scheduledRetentionCandidate struct {
	ID         string
	RequestID  string
	ResponseID *string
}

func (s *ScheduledRetention) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var cand scheduledRetentionCandidate
	err := tx.Raw(`
		SELECT job.id AS id, exec.request_id AS request_id, exec.response_id AS response_id
		FROM scheduled_jobs job
		JOIN job_executions exec ON exec.id = job.execution_id
		JOIN tenants tenant ON tenant.id = job.tenant_id
		WHERE job.execution_id IS NOT NULL
			AND job.tenant_id IS NOT NULL
			AND job.deleted_at IS NULL
			AND exec.executed_at < now() - (tenant.retain_for_days * interval '1 day')
		LIMIT 1 FOR UPDATE OF job SKIP LOCKED
	`).Scan(&cand).Error
	if err != nil {
		return false, fmt.Errorf("scheduled retention: candidate query: %w", err)
	}
	if cand.ID == "" {
		return true, nil
	}

	if err := tx.Exec(`UPDATE scheduled_jobs SET deleted_at = now() WHERE id = ?`, cand.ID).Error; err != nil {
		return false, fmt.Errorf("scheduled retention: soft-delete job: %w", err)
	}
	if err := redactRequest(tx, cand.RequestID); err != nil {
		return false, err
	}
	if cand.ResponseID != nil {
		if err := redactResponse(tx, *cand.ResponseID); err != nil {
			return false, err
		}
	}
	return false, nil
}

// OneOffRetention soft-deletes and redacts a one-off job once all of
// its scheduled rows are old or already redacted.
type OneOffRetention struct{}

func (o *OneOffRetention) Name() string { return "one_off_retention" }

type oneOffRetentionCandidate struct {
	ID        string
	RequestID string
}

func (o *OneOffRetention) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var cand oneOffRetentionCandidate
	err := tx.Raw(`
		WITH candidates AS (
			SELECT one_off.id
			FROM one_off_jobs one_off
			JOIN scheduled_jobs sched ON sched.one_off_job_id = one_off.id
			WHERE one_off.deleted_at IS NULL
				AND NOT EXISTS (
					SELECT 1 FROM scheduled_jobs sched_2
					WHERE sched_2.one_off_job_id = one_off.id
						AND (sched_2.deleted_at IS NULL OR sched_2.deleted_at >= now() - interval '3 hours')
				)
			GROUP BY one_off.id
			LIMIT 10
		)
		SELECT one_off.id AS id, one_off.request_id AS request_id
		FROM one_off_jobs one_off
		JOIN candidates c ON c.id = one_off.id
		LIMIT 1 FOR UPDATE OF one_off SKIP LOCKED
	`).Scan(&cand).Error
	if err != nil {
		return false, fmt.Errorf("one-off retention: candidate query: %w", err)
	}
	if cand.ID == "" {
		return true, nil
	}

	if err := tx.Exec(`UPDATE one_off_jobs SET deleted_at = now() WHERE id = ?`, cand.ID).Error; err != nil {
		return false, fmt.Errorf("one-off retention: soft-delete job: %w", err)
	}
	return false, redactRequest(tx, cand.RequestID)
}

func redactRequest(tx *gorm.DB, id string) error {
	return tx.Model(&models.HttpRequest{}).Where("id = ?", id).
		Updates(map[string]any{"body": []byte(models.RedactedBody), "headers": ""}).Error
}

func redactResponse(tx *gorm.DB, id string) error {
	return tx.Model(&models.HttpResponse{}).Where("id = ?", id).
		Updates(map[string]any{"body": []byte(models.RedactedBody), "headers": ""}).Error
}

// RetentionGrace is the initial wait both retention schedulers observe
// before their first tick.
const RetentionGrace = 5 * time.Minute
