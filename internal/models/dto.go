package models

import (
	"encoding/json"
	"time"
)

// CreateTenantRequest is the payload accepted by POST /api/v1/tenants.
type CreateTenantRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=255"`
	Region        string `json:"region" validate:"required,min=1,max=64"`
	MaxTokens     int32  `json:"max_tokens" validate:"required,gt=0"`
	TokensPerDay  int32  `json:"tokens_per_day" validate:"required,gt=0"`
	MaxTimeoutMs  int32  `json:"max_timeout_ms,omitempty"`
	MaxRetries    int32  `json:"max_retries,omitempty"`
	RetainForDays int32  `json:"retain_for_days,omitempty"`
}

// CreateOneOffJobRequest is the payload accepted by POST /api/v1/one-off-jobs.
type CreateOneOffJobRequest struct {
	Region     string            `json:"region" validate:"required"`
	TenantID   *string           `json:"tenant_id,omitempty"`
	Method     string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	URL        string            `json:"url" validate:"required,url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	ExecuteAt  time.Time         `json:"execute_at" validate:"required"`
	TimeoutMs  *int32            `json:"timeout_ms,omitempty"`
	MaxRetries int32             `json:"max_retries,omitempty"`
}

// UpdateOneOffJobRequest is the payload accepted by PATCH
// /api/v1/one-off-jobs/{id}. The frozen request is replaced wholesale
// and any not-yet-dispatched scheduled row is dropped so the
// materializer re-creates it against the new definition.
type UpdateOneOffJobRequest struct {
	Method     string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	URL        string            `json:"url" validate:"required,url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	ExecuteAt  time.Time         `json:"execute_at" validate:"required"`
	TimeoutMs  *int32            `json:"timeout_ms,omitempty"`
	MaxRetries int32             `json:"max_retries,omitempty"`
}

// CreateCronJobRequest is the payload accepted by POST /api/v1/cron-jobs.
type CreateCronJobRequest struct {
	Region     string            `json:"region" validate:"required"`
	TenantID   *string           `json:"tenant_id,omitempty"`
	Method     string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	URL        string            `json:"url" validate:"required,url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	Schedule   string            `json:"schedule" validate:"required"`
	TimeoutMs  *int32            `json:"timeout_ms,omitempty"`
	MaxRetries int32             `json:"max_retries,omitempty"`
}

// UpdateCronJobRequest is the payload accepted by PATCH
// /api/v1/cron-jobs/{id}. Updates always clear the job's error, so a
// fixed schedule resumes expansion without a separate step.
type UpdateCronJobRequest struct {
	Method     string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	URL        string            `json:"url" validate:"required,url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	Schedule   string            `json:"schedule" validate:"required"`
	TimeoutMs  *int32            `json:"timeout_ms,omitempty"`
	MaxRetries int32             `json:"max_retries,omitempty"`
}

// CreateWorkflowRequest is the payload accepted by POST /api/v1/workflows.
type CreateWorkflowRequest struct {
	Region            string          `json:"region" validate:"required"`
	TenantID          *string         `json:"tenant_id,omitempty"`
	ImplementationURL string          `json:"implementation_url" validate:"required,url"`
	Input             json.RawMessage `json:"input,omitempty"`
	MaxRetries        int32           `json:"max_retries,omitempty"`
}

// ScheduledJobFilter narrows a list query over scheduled jobs.
type ScheduledJobFilter struct {
	TenantID *string
	Region   string
	Page     int
	PageSize int
}

// PageResult is a generic paginated envelope for list endpoints.
type PageResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	HasMore    bool  `json:"has_more"`
}
