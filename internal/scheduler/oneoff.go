package scheduler

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/idgen"
)

// OneOffMaterializer converts a one-off definition into its single
// scheduled_jobs row. Idempotent on restart: the anti-join filter
// excludes already-materialized jobs.
type OneOffMaterializer struct{}

func (o *OneOffMaterializer) Name() string { return "one_off_materializer" }

type oneOffCandidate struct {
	ID           string
	Region       string
	TenantID     *string
	RequestID    string
	ExecuteAt    string
	TimeoutMs    *int32
	MaxRetries   int32
	MaxRespBytes *int64
}

func (o *OneOffMaterializer) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var cand oneOffCandidate
	err := tx.Raw(`
		SELECT
			one_off.id AS id,
			one_off.region AS region,
			one_off.tenant_id AS tenant_id,
			one_off.request_id AS request_id,
			one_off.execute_at AS execute_at,
			one_off.timeout_ms AS timeout_ms,
			one_off.max_retries AS max_retries,
			one_off.max_resp_bytes AS max_resp_bytes
		FROM one_off_jobs one_off
		WHERE one_off.deleted_at IS NULL
			AND NOT EXISTS (
				SELECT 1 FROM scheduled_jobs sched WHERE sched.one_off_job_id = one_off.id
			)
		LIMIT 1 FOR UPDATE OF one_off SKIP LOCKED
	`).Scan(&cand).Error
	if err != nil {
		return false, fmt.Errorf("one-off materializer: candidate query: %w", err)
	}
	if cand.ID == "" {
		return true, nil
	}

	id := idgen.Generate("scheduled_job")
	hash := idgen.ShardHash(id)
	err = tx.Exec(`
		INSERT INTO scheduled_jobs
			(id, hash, region, tenant_id, one_off_job_id, scheduled_at, request_id, timeout_ms, max_retries, max_response_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, hash, cand.Region, cand.TenantID, cand.ID, cand.ExecuteAt, cand.RequestID, cand.TimeoutMs, cand.MaxRetries, cand.MaxRespBytes).Error
	if err != nil {
		return false, fmt.Errorf("one-off materializer: insert scheduled job: %w", err)
	}
	return false, nil
}
