package scheduler

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/workflow"
)

// WorkflowPendingExecution materializes the dependencies (child
// workflows, wait timers) that a pending execution's returned data
// declared, then transitions that execution to waiting.
type WorkflowPendingExecution struct{}

func (w *WorkflowPendingExecution) Name() string { return "workflow_pending_execution" }

func (w *WorkflowPendingExecution) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var wf models.Workflow
	err := tx.Raw(`
		SELECT workflow.* FROM workflows workflow
		WHERE EXISTS (
			SELECT 1 FROM workflow_executions exec
			WHERE exec.workflow_id = workflow.id AND exec.status = 'pending'
		)
		AND NOT EXISTS (
			SELECT 1 FROM workflow_executions exec
			WHERE exec.workflow_id = workflow.id AND exec.status NOT IN ('pending', 'completed', 'failed')
		)
		LIMIT 1 FOR UPDATE OF workflow SKIP LOCKED
	`).Scan(&wf).Error
	if err != nil {
		return false, fmt.Errorf("workflow pending-execution: candidate query: %w", err)
	}
	if wf.ID == "" {
		return true, nil
	}

	var executions []models.WorkflowExecution
	if err := tx.Raw(`
		SELECT * FROM workflow_executions WHERE workflow_id = ? ORDER BY execution_index ASC FOR UPDATE
	`, wf.ID).Scan(&executions).Error; err != nil {
		return false, fmt.Errorf("workflow pending-execution: load executions: %w", err)
	}

	var pending models.WorkflowExecution
	for _, e := range executions {
		if e.Status == models.WorkflowExecutionPending {
			pending = e
			break
		}
	}
	if pending.ID == "" {
		return false, fmt.Errorf("workflow pending-execution: candidate had no pending execution")
	}

	var deps []workflowDependencyRow
	if err := tx.Raw(depJoinQuery, wf.ID).Scan(&deps).Error; err != nil {
		return false, fmt.Errorf("workflow pending-execution: load dependencies: %w", err)
	}

	childWorkflows := map[string]workflow.ChildDefinition{}
	waits := map[string]workflow.WaitDefinition{}

	for _, exec := range executions {
		data, ok := workflow.ParseReturnedData(exec.ResultJSON)
		if !ok {
			continue
		}
		for name, def := range data.NewChildren {
			childWorkflows[name] = def
		}
		for name, def := range data.NewWaits {
			waits[name] = def
		}
	}

	for _, dep := range deps {
		if dep.ChildWorkflowName != nil {
			delete(childWorkflows, *dep.ChildWorkflowName)
		}
		if dep.WaitName != nil {
			delete(waits, *dep.WaitName)
		}
	}

	for name, def := range childWorkflows {
		childID := idgen.Generate("workflow")
		if err := tx.Exec(`
			INSERT INTO workflows (id, region, tenant_id, implementation_url, input, status, max_retries)
			VALUES (?, ?, ?, ?, ?, 'pending', ?)
		`, childID, wf.Region, wf.TenantID, def.URL(), def.Input(), def.MaxRetries()).Error; err != nil {
			return false, fmt.Errorf("workflow pending-execution: insert child workflow: %w", err)
		}

		depID := idgen.Generate("workflow_dependency")
		if err := tx.Exec(`
			INSERT INTO workflow_dependencies (id, workflow_execution_id, child_workflow_name, child_workflow_id)
			VALUES (?, ?, ?, ?)
		`, depID, pending.ID, name, childID).Error; err != nil {
			return false, fmt.Errorf("workflow pending-execution: insert child dependency: %w", err)
		}
	}

	for name, def := range waits {
		depID := idgen.Generate("workflow_dependency")
		if err := tx.Exec(`
			INSERT INTO workflow_dependencies (id, workflow_execution_id, wait_name, wait_until)
			VALUES (?, ?, ?, ?)
		`, depID, pending.ID, name, def.WaitUntil()).Error; err != nil {
			return false, fmt.Errorf("workflow pending-execution: insert wait dependency: %w", err)
		}
	}

	return false, tx.Exec(`
		UPDATE workflow_executions SET status = 'waiting' WHERE id = ?
	`, pending.ID).Error
}
