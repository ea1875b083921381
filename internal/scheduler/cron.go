package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/idgen"
)

// CronExpander produces upcoming fire times for cron jobs, bounded by
// backlog and horizon.
type CronExpander struct {
	BacklogCap int
	Horizon    time.Duration
}

func (c *CronExpander) Name() string { return "cron_expander" }

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type cronCandidate struct {
	ID                string
	Region            string
	TenantID          *string
	RequestID         string
	Schedule          string
	TimeoutMs         *int32
	MaxRetries        int32
	MaxRespBytes      *int64
	LatestScheduledAt *time.Time
}

// cronRefreshWindow gates re-expansion: a cron job whose most recent
// scheduled row is further out than this is left alone until the
// backlog drains closer to the present.
const cronRefreshWindow = 10 * time.Minute

// cronExpansionSafetyCap bounds how many candidate fire times
// expandFireTimes will step through looking for ones inside the
// horizon, guarding against a schedule (e.g. a yearly cron far in the
// past) that would otherwise iterate a long time before producing
// BacklogCap hits or exceeding the horizon.
const cronExpansionSafetyCap = 70

// expandFireTimes walks schedule forward from `from`, collecting up to
// backlogCap fire times that land at or before horizonCutoff. It stops
// early once the schedule reports no further fire time or one past the
// cutoff.
func expandFireTimes(schedule cron.Schedule, from, horizonCutoff time.Time, backlogCap int) []time.Time {
	var out []time.Time
	next := from
	for i := 0; i < cronExpansionSafetyCap && len(out) < backlogCap; i++ {
		next = schedule.Next(next)
		if next.IsZero() || next.After(horizonCutoff) {
			break
		}
		out = append(out, next)
	}
	return out
}

func (c *CronExpander) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var cand cronCandidate
	err := tx.Raw(`
		WITH unexecuted_job_counts AS (
			SELECT
				cron.id AS id,
				COUNT(sched.id) FILTER (WHERE sched.execution_id IS NULL AND sched.deleted_at IS NULL) AS unexecuted_count,
				MAX(sched.scheduled_at) AS latest_scheduled_at
			FROM cron_jobs cron
			LEFT JOIN scheduled_jobs sched ON sched.cron_job_id = cron.id
			WHERE cron.deleted_at IS NULL
			GROUP BY cron.id
		)
		SELECT
			cron.id AS id,
			cron.region AS region,
			cron.tenant_id AS tenant_id,
			cron.request_id AS request_id,
			cron.schedule AS schedule,
			cron.timeout_ms AS timeout_ms,
			cron.max_retries AS max_retries,
			cron.max_resp_bytes AS max_resp_bytes,
			counts.latest_scheduled_at AS latest_scheduled_at
		FROM cron_jobs cron
		JOIN unexecuted_job_counts counts ON counts.id = cron.id
		WHERE cron.deleted_at IS NULL
			AND cron.error IS NULL
			AND counts.unexecuted_count < ?
			AND (counts.latest_scheduled_at IS NULL OR counts.latest_scheduled_at < now() + ?::interval)
		LIMIT 1 FOR UPDATE OF cron SKIP LOCKED
	`, c.BacklogCap, fmt.Sprintf("%d seconds", int(cronRefreshWindow.Seconds()))).Scan(&cand).Error
	if err != nil {
		return false, fmt.Errorf("cron expander: candidate query: %w", err)
	}
	if cand.ID == "" {
		return true, nil
	}

	schedule, err := cronParser.Parse(cand.Schedule)
	if err != nil {
		return false, tx.Exec(`UPDATE cron_jobs SET error = ? WHERE id = ?`, err.Error(), cand.ID).Error
	}

	from := time.Now().UTC()
	if cand.LatestScheduledAt != nil && cand.LatestScheduledAt.After(from) {
		from = *cand.LatestScheduledAt
	}

	horizonCutoff := time.Now().UTC().Add(c.Horizon)
	fireTimes := expandFireTimes(schedule, from, horizonCutoff, c.BacklogCap)

	for _, next := range fireTimes {
		id := idgen.GenerateForTime("scheduled_job", next)
		hash := idgen.ShardHash(id)
		if err := tx.Exec(`
			INSERT INTO scheduled_jobs
				(id, hash, region, tenant_id, cron_job_id, scheduled_at, request_id, timeout_ms, max_retries, max_response_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, hash, cand.Region, cand.TenantID, cand.ID, next, cand.RequestID, cand.TimeoutMs, cand.MaxRetries, cand.MaxRespBytes).Error; err != nil {
			return false, fmt.Errorf("cron expander: insert scheduled job: %w", err)
		}
	}

	return false, nil
}
