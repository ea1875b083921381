package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/workflow"
)

// WorkflowWaitedExecution selects workflows whose current execution is
// waiting and fully satisfied (every wait elapsed, every child
// finished), rebuilds the context, and enqueues the next
// implementation POST with backoff 3min * (is_retry ? 2^retry_count : 1).
type WorkflowWaitedExecution struct{}

func (w *WorkflowWaitedExecution) Name() string { return "workflow_waited_execution" }

func (w *WorkflowWaitedExecution) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var wf models.Workflow
	err := tx.Raw(`
		SELECT workflow.* FROM workflows workflow
		WHERE EXISTS (
			SELECT 1 FROM workflow_executions exec
			WHERE exec.workflow_id = workflow.id AND exec.status = 'waiting'
		)
		AND NOT EXISTS (
			SELECT 1 FROM workflow_executions exec
			WHERE exec.workflow_id = workflow.id AND exec.status NOT IN ('waiting', 'completed', 'failed')
		)
		AND NOT EXISTS (
			SELECT 1
			FROM workflow_executions exec
			JOIN workflow_dependencies dep ON dep.workflow_execution_id = exec.id
			LEFT JOIN workflows child_workflow ON child_workflow.id = dep.child_workflow_id
			WHERE exec.workflow_id = workflow.id
				AND (
					(dep.wait_until IS NOT NULL AND dep.wait_until > now())
					OR (dep.child_workflow_id IS NOT NULL AND child_workflow.status = 'pending')
				)
		)
		LIMIT 1 FOR UPDATE OF workflow SKIP LOCKED
	`).Scan(&wf).Error
	if err != nil {
		return false, fmt.Errorf("workflow waited-execution: candidate query: %w", err)
	}
	if wf.ID == "" {
		return true, nil
	}

	var executions []models.WorkflowExecution
	if err := tx.Raw(`
		SELECT * FROM workflow_executions WHERE workflow_id = ? ORDER BY execution_index ASC FOR UPDATE
	`, wf.ID).Scan(&executions).Error; err != nil {
		return false, fmt.Errorf("workflow waited-execution: load executions: %w", err)
	}

	var lastExecution models.WorkflowExecution
	for _, e := range executions {
		if e.Status == models.WorkflowExecutionWaiting {
			lastExecution = e
			break
		}
	}
	if lastExecution.ID == "" {
		return false, fmt.Errorf("workflow waited-execution: candidate had no waiting execution")
	}

	var deps []workflowDependencyRow
	if err := tx.Raw(depJoinQuery, wf.ID).Scan(&deps).Error; err != nil {
		return false, fmt.Errorf("workflow waited-execution: load dependencies: %w", err)
	}

	ctxProjection := workflow.NewContext(wf.Input)
	retryCount := 0
	for _, exec := range executions {
		ctxProjection.IngestExecution(toContextExecution(exec))
		if exec.IsRetry {
			retryCount++
		}
	}
	for _, dep := range deps {
		ctxProjection.IngestDependency(toContextDependency(dep))
	}

	ctxJSON, err := json.Marshal(ctxProjection)
	if err != nil {
		return false, fmt.Errorf("workflow waited-execution: marshal context: %w", err)
	}
	if err := tx.Exec(`UPDATE workflows SET context = ? WHERE id = ?`, ctxJSON, wf.ID).Error; err != nil {
		return false, fmt.Errorf("workflow waited-execution: persist context: %w", err)
	}

	requestID := idgen.Generate("request")
	if err := tx.Exec(`
		INSERT INTO http_requests (id, method, url, headers, body) VALUES (?, 'POST', ?, '', ?)
	`, requestID, wf.ImplementationURL, ctxJSON).Error; err != nil {
		return false, fmt.Errorf("workflow waited-execution: insert request: %w", err)
	}

	waitFactor := 1
	if lastExecution.IsRetry {
		waitFactor = 1 << uint(retryCount)
	}
	waitTime := 3 * time.Minute * time.Duration(waitFactor)
	scheduledAt := time.Now().UTC().Add(waitTime)

	scheduledJobID := idgen.GenerateForTime("scheduled_job", scheduledAt)
	hash := idgen.ShardHash(scheduledJobID)

	if err := tx.Exec(`
		INSERT INTO scheduled_jobs
			(id, hash, region, tenant_id, workflow_id, workflow_execution_id, scheduled_at, request_id, max_retries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, scheduledJobID, hash, wf.Region, wf.TenantID, wf.ID, lastExecution.ID, scheduledAt, requestID).Error; err != nil {
		return false, fmt.Errorf("workflow waited-execution: insert scheduled job: %w", err)
	}

	return false, tx.Exec(`
		UPDATE workflow_executions SET status = 'scheduled' WHERE id = ?
	`, lastExecution.ID).Error
}
