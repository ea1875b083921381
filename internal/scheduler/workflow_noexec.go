package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/workflow"
)

// WorkflowNoExecution selects workflows with no non-terminal execution
// and either spawns execution #0 or decides, from the rebuilt context,
// whether to finalize the workflow or spawn the next execution.
type WorkflowNoExecution struct{}

func (w *WorkflowNoExecution) Name() string { return "workflow_no_execution" }

func (w *WorkflowNoExecution) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	var wf models.Workflow
	err := tx.Raw(`
		SELECT workflow.* FROM workflows workflow
		WHERE NOT EXISTS (
			SELECT 1 FROM workflow_executions exec
			WHERE exec.workflow_id = workflow.id AND exec.status NOT IN ('completed', 'failed')
		)
		AND workflow.status = 'pending'
		LIMIT 1 FOR UPDATE OF workflow SKIP LOCKED
	`).Scan(&wf).Error
	if err != nil {
		return false, fmt.Errorf("workflow no-execution: candidate query: %w", err)
	}
	if wf.ID == "" {
		return true, nil
	}

	var executions []models.WorkflowExecution
	if err := tx.Raw(`
		SELECT * FROM workflow_executions WHERE workflow_id = ? ORDER BY execution_index ASC FOR UPDATE
	`, wf.ID).Scan(&executions).Error; err != nil {
		return false, fmt.Errorf("workflow no-execution: load executions: %w", err)
	}

	if len(executions) == 0 {
		return false, createWorkflowExecution(tx, wf, 0, false)
	}

	var deps []workflowDependencyRow
	if err := tx.Raw(depJoinQuery, wf.ID).Scan(&deps).Error; err != nil {
		return false, fmt.Errorf("workflow no-execution: load dependencies: %w", err)
	}

	ctxProjection := workflow.NewContext(wf.Input)
	retryCount := 0
	newDependencies := map[string]bool{}

	for _, exec := range executions {
		ctxProjection.IngestExecution(toContextExecution(exec))
		if exec.IsRetry {
			retryCount++
		}
		if data, ok := workflow.ParseReturnedData(exec.ResultJSON); ok {
			for name := range data.NewChildren {
				newDependencies[name] = true
			}
			for name := range data.NewWaits {
				newDependencies[name] = true
			}
		}
	}

	for _, dep := range deps {
		ctxProjection.IngestDependency(toContextDependency(dep))
		if dep.WaitName != nil {
			delete(newDependencies, *dep.WaitName)
		}
		if dep.ChildWorkflowName != nil {
			delete(newDependencies, *dep.ChildWorkflowName)
		}
	}

	latest := executions[len(executions)-1]

	// "Returned a result" means the ReturnedData's result field, not
	// just any result_json: a completed execution that only declared
	// new children or waits carries JSON but no final result.
	if data, ok := workflow.ParseReturnedData(latest.ResultJSON); ok {
		if len(data.Result) > 0 && string(data.Result) != "null" {
			return false, finalizeWorkflowSuccess(tx, wf.ID, data.Result, ctxProjection)
		}
	}

	if latest.FailureReason != nil {
		if int32(retryCount) >= wf.MaxRetries {
			return false, finalizeWorkflowError(tx, wf.ID, *latest.FailureReason, ctxProjection)
		}
		return false, createWorkflowExecution(tx, wf, latest.ExecutionIndex+1, true)
	}

	// No result, no error returned: counts as a retry iff no new
	// dependencies were introduced since the last execution.
	isRetry := len(newDependencies) == 0
	if isRetry && int32(retryCount) >= wf.MaxRetries {
		return false, finalizeWorkflowError(tx, wf.ID,
			fmt.Sprintf("Cannot retry execution more than %d times", wf.MaxRetries), ctxProjection)
	}

	return false, createWorkflowExecution(tx, wf, latest.ExecutionIndex+1, isRetry)
}

func createWorkflowExecution(tx *gorm.DB, wf models.Workflow, index int32, isRetry bool) error {
	id := idgen.Generate("workflow_execution")
	return tx.Exec(`
		INSERT INTO workflow_executions (id, region, workflow_id, execution_index, tenant_id, status, is_retry)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)
	`, id, wf.Region, wf.ID, index, wf.TenantID, isRetry).Error
}

func finalizeWorkflowError(tx *gorm.DB, workflowID string, reason string, ctxProjection *workflow.Context) error {
	ctxJSON, err := json.Marshal(ctxProjection)
	if err != nil {
		return fmt.Errorf("workflow no-execution: marshal context: %w", err)
	}
	return tx.Exec(`
		UPDATE workflows SET status = 'failed', error = ?, context = ? WHERE id = ?
	`, reason, ctxJSON, workflowID).Error
}

func finalizeWorkflowSuccess(tx *gorm.DB, workflowID string, result json.RawMessage, ctxProjection *workflow.Context) error {
	ctxJSON, err := json.Marshal(ctxProjection)
	if err != nil {
		return fmt.Errorf("workflow no-execution: marshal context: %w", err)
	}
	return tx.Exec(`
		UPDATE workflows SET status = 'completed', result = ?, context = ? WHERE id = ?
	`, result, ctxJSON, workflowID).Error
}

const depJoinQuery = `
	SELECT
		dep.id AS id,
		dep.workflow_execution_id AS workflow_execution_id,
		dep.wait_name AS wait_name,
		dep.wait_until AS wait_until,
		dep.child_workflow_name AS child_workflow_name,
		dep.child_workflow_id AS child_workflow_id,
		child.result AS child_result,
		child.error AS child_error,
		COALESCE(dep.wait_until < now(), false) AS wait_complete
	FROM workflow_dependencies dep
	JOIN workflow_executions exec ON exec.id = dep.workflow_execution_id
	LEFT JOIN workflows child ON child.id = dep.child_workflow_id
	WHERE exec.workflow_id = ?
	ORDER BY dep.id ASC
	FOR UPDATE OF dep
`

type workflowDependencyRow struct {
	ID                  string
	WorkflowExecutionID string
	WaitName            *string
	WaitUntil           *string
	ChildWorkflowName   *string
	ChildWorkflowID     *string
	ChildResult         json.RawMessage
	ChildError          *string
	WaitComplete        bool
}

func toContextExecution(e models.WorkflowExecution) workflow.Execution {
	return workflow.Execution{
		ID:             e.ID,
		ExecutionIndex: e.ExecutionIndex,
		IsRetry:        e.IsRetry,
		ExecutedAt:     e.ExecutedAt,
		ResultJSON:     e.ResultJSON,
		FailureReason:  e.FailureReason,
	}
}

func toContextDependency(d workflowDependencyRow) workflow.Dependency {
	return workflow.Dependency{
		WaitName:          d.WaitName,
		WaitComplete:      d.WaitComplete,
		ChildWorkflowName: d.ChildWorkflowName,
		ChildResult:       d.ChildResult,
		ChildError:        d.ChildError,
	}
}
