package models

import (
	"encoding/json"
	"time"
)

// WorkflowStatus is the terminal/non-terminal state of a Workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// Workflow is the user's intent to run a long-lived orchestration made
// of WorkflowExecutions. Context is a cached projection, never
// authoritative (see internal/workflow.Context).
type Workflow struct {
	ID                string          `json:"id" gorm:"type:varchar(40);primaryKey"`
	Region            string          `json:"region" gorm:"type:varchar(64);not null"`
	TenantID          *string         `json:"tenant_id,omitempty" gorm:"type:varchar(40);index"`
	ImplementationURL string          `json:"implementation_url" gorm:"type:text;not null"`
	Input             json.RawMessage `json:"input" gorm:"type:jsonb;not null;default:'{}'"`
	Status            WorkflowStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_workflow_status"`
	MaxRetries        int32           `json:"max_retries" gorm:"not null;default:0"`
	Context           json.RawMessage `json:"context,omitempty" gorm:"type:jsonb"`
	Result            json.RawMessage `json:"result,omitempty" gorm:"type:jsonb"`
	Error             *string         `json:"error,omitempty" gorm:"type:text"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Workflow) TableName() string { return "workflows" }

// WorkflowExecutionStatus is one tick's lifecycle.
type WorkflowExecutionStatus string

const (
	WorkflowExecutionPending   WorkflowExecutionStatus = "pending"
	WorkflowExecutionWaiting   WorkflowExecutionStatus = "waiting"
	WorkflowExecutionScheduled WorkflowExecutionStatus = "scheduled"
	WorkflowExecutionCompleted WorkflowExecutionStatus = "completed"
	WorkflowExecutionFailed    WorkflowExecutionStatus = "failed"
)

// WorkflowExecution is one tick of the workflow driver.
type WorkflowExecution struct {
	ID             string                  `json:"id" gorm:"type:varchar(40);primaryKey"`
	Region         string                  `json:"region" gorm:"type:varchar(64);not null"`
	WorkflowID     string                  `json:"workflow_id" gorm:"type:varchar(40);not null;index:idx_wfexec_workflow"`
	ExecutionIndex int32                   `json:"execution_index" gorm:"not null"`
	TenantID       *string                 `json:"tenant_id,omitempty" gorm:"type:varchar(40)"`
	Status         WorkflowExecutionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	IsRetry        bool                    `json:"is_retry" gorm:"not null;default:false"`
	ExecutedAt     *time.Time              `json:"executed_at,omitempty"`
	ResultJSON     json.RawMessage         `json:"result_json,omitempty" gorm:"type:jsonb"`
	FailureReason  *string                 `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt      time.Time               `json:"created_at" gorm:"autoCreateTime"`
}

func (WorkflowExecution) TableName() string { return "workflow_executions" }

// WorkflowDependency is either a wait_until timer or a child workflow
// reference, owned by one WorkflowExecution. At most one of the two
// pairs is populated.
type WorkflowDependency struct {
	ID                  string     `json:"id" gorm:"type:varchar(40);primaryKey"`
	WorkflowExecutionID string     `json:"workflow_execution_id" gorm:"type:varchar(40);not null;index:idx_wfdep_exec"`
	WaitName            *string    `json:"wait_name,omitempty" gorm:"type:varchar(255)"`
	WaitUntil           *time.Time `json:"wait_until,omitempty"`
	ChildWorkflowName   *string    `json:"child_workflow_name,omitempty" gorm:"type:varchar(255)"`
	ChildWorkflowID     *string    `json:"child_workflow_id,omitempty" gorm:"type:varchar(40);index"`
	CreatedAt           time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (WorkflowDependency) TableName() string { return "workflow_dependencies" }
