package models

import "time"

// OneOffJob is the user's intent to fire once at ExecuteAt. Updating a
// one-off job deletes any not-yet-dispatched scheduled row and lets the
// materializer re-create it; deleting soft-deletes via DeletedAt.
type OneOffJob struct {
	ID           string     `json:"id" gorm:"type:varchar(40);primaryKey"`
	Region       string     `json:"region" gorm:"type:varchar(64);not null;index:idx_oneoff_region"`
	TenantID     *string    `json:"tenant_id,omitempty" gorm:"type:varchar(40);index:idx_oneoff_tenant"`
	RequestID    string     `json:"request_id" gorm:"type:varchar(40);not null"`
	ExecuteAt    time.Time  `json:"execute_at" gorm:"not null;index:idx_oneoff_execute_at"`
	TimeoutMs    *int32     `json:"timeout_ms,omitempty"`
	MaxRetries   int32      `json:"max_retries" gorm:"not null;default:0"`
	MaxRespBytes *int64     `json:"max_response_bytes,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" gorm:"index:idx_oneoff_deleted"`
}

func (OneOffJob) TableName() string { return "one_off_jobs" }

// CronJob is the user's intent to fire on a recurring schedule. A
// non-null Error disables expansion until an update clears it.
type CronJob struct {
	ID           string     `json:"id" gorm:"type:varchar(40);primaryKey"`
	Region       string     `json:"region" gorm:"type:varchar(64);not null;index:idx_cron_region"`
	TenantID     *string    `json:"tenant_id,omitempty" gorm:"type:varchar(40);index:idx_cron_tenant"`
	RequestID    string     `json:"request_id" gorm:"type:varchar(40);not null"`
	Schedule     string     `json:"schedule" gorm:"type:varchar(120);not null"`
	Error        *string    `json:"error,omitempty" gorm:"type:text"`
	TimeoutMs    *int32     `json:"timeout_ms,omitempty"`
	MaxRetries   int32      `json:"max_retries" gorm:"not null;default:0"`
	MaxRespBytes *int64     `json:"max_response_bytes,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" gorm:"index:idx_cron_deleted"`
}

func (CronJob) TableName() string { return "cron_jobs" }

// ScheduledJob is the heart of the system: a concrete, addressable fire.
// Exactly one of OneOffJobID, CronJobID, WorkflowExecutionID is set.
// LockNonce doubles as lease token and expiry basis:
// floor(unix_epoch_seconds) at lease time, NULL when unleased.
type ScheduledJob struct {
	ID          string    `json:"id" gorm:"type:varchar(40);primaryKey"`
	Hash        int32     `json:"hash" gorm:"not null;index:idx_scheduled_hash"`
	Region      string    `json:"region" gorm:"type:varchar(64);not null;index:idx_scheduled_region_time"`
	ScheduledAt time.Time `json:"scheduled_at" gorm:"not null;index:idx_scheduled_region_time"`
	TenantID    *string   `json:"tenant_id,omitempty" gorm:"type:varchar(40);index:idx_scheduled_tenant_time"`

	OneOffJobID         *string `json:"one_off_job_id,omitempty" gorm:"type:varchar(40);index"`
	CronJobID           *string `json:"cron_job_id,omitempty" gorm:"type:varchar(40);index"`
	WorkflowID          *string `json:"workflow_id,omitempty" gorm:"type:varchar(40);index"`
	WorkflowExecutionID *string `json:"workflow_execution_id,omitempty" gorm:"type:varchar(40);index"`

	RetryForID *string `json:"retry_for_id,omitempty" gorm:"type:varchar(40);index"`
	RequestID  string  `json:"request_id" gorm:"type:varchar(40);not null"`

	TimeoutMs        *int32 `json:"timeout_ms,omitempty"`
	MaxRetries       int32  `json:"max_retries" gorm:"not null;default:0"`
	MaxResponseBytes *int64 `json:"max_response_bytes,omitempty"`

	TimesLocked int32   `json:"times_locked" gorm:"not null;default:0"`
	LockNonce   *int64  `json:"lock_nonce,omitempty" gorm:"index:idx_scheduled_lock_nonce"`
	ExecutionID *string `json:"execution_id,omitempty" gorm:"type:varchar(40);index"`

	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" gorm:"index:idx_scheduled_deleted"`
}

func (ScheduledJob) TableName() string { return "scheduled_jobs" }

// IsQueued reports the queued state: unleased, uncompleted.
func (s ScheduledJob) IsQueued() bool { return s.LockNonce == nil && s.ExecutionID == nil }

// IsLeased reports the in-flight state: leased, awaiting a result.
func (s ScheduledJob) IsLeased() bool { return s.LockNonce != nil && s.ExecutionID == nil }

// IsCompleted reports the terminal state: unleased, result recorded.
func (s ScheduledJob) IsCompleted() bool { return s.LockNonce == nil && s.ExecutionID != nil }

// JobExecution is the immutable record of one dispatch outcome.
type JobExecution struct {
	ID            string    `json:"id" gorm:"type:varchar(40);primaryKey"`
	ExecutedAt    time.Time `json:"executed_at" gorm:"not null"`
	Success       bool      `json:"success" gorm:"not null"`
	ResponseID    *string   `json:"response_id,omitempty" gorm:"type:varchar(40)"`
	ResponseError *string   `json:"response_error,omitempty" gorm:"type:text"`
	RequestID     string    `json:"request_id" gorm:"type:varchar(40);not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (JobExecution) TableName() string { return "job_executions" }
