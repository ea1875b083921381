package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// applyWorkflowSideEffect runs when a scheduled row belonging to a
// workflow execution is recorded: lock the workflow and all its
// executions in index order (prevents concurrent drivers on the same
// workflow) and resolve the execution from the drone's response body.
func applyWorkflowSideEffect(tx *gorm.DB, workflowID, executionID string, respBody []byte, success bool, respErr *string, executedAt time.Time) error {
	if err := tx.Exec(`SELECT id FROM workflows WHERE id = ? FOR UPDATE`, workflowID).Error; err != nil {
		return fmt.Errorf("workflow side effect: lock workflow: %w", err)
	}
	if err := tx.Exec(`SELECT id FROM workflow_executions WHERE workflow_id = ? ORDER BY execution_index ASC FOR UPDATE`, workflowID).Error; err != nil {
		return fmt.Errorf("workflow side effect: lock executions: %w", err)
	}

	outcome := resolveWorkflowOutcome(success, respErr, respBody)

	return tx.Exec(`
		UPDATE workflow_executions SET status = ?, failure_reason = ?, result_json = ?, executed_at = ? WHERE id = ?
	`, outcome.Status, outcome.FailureReason, outcome.ResultJSON, executedAt, executionID).Error
}

// workflowOutcome is what a drone's response resolves to for one
// workflow execution tick: either completed (with result_json) or
// failed (with a failure_reason and, where available, the raw JSON
// so the next driver tick can still inspect it).
type workflowOutcome struct {
	Status        string
	FailureReason *string
	ResultJSON    []byte
}

// resolveWorkflowOutcome is a purely JSON-shape-driven cascade: a
// transport-level failure fails outright; otherwise the response body
// is judged solely on whether it is valid JSON, whether it matches the
// expected shape, and whether it carries an "error" field. HTTP status
// plays no part: an implementation's 500 with a well-formed body still
// resolves from that body.
func resolveWorkflowOutcome(success bool, respErr *string, respBody []byte) workflowOutcome {
	if !success {
		reason := "drone reported a transport-level failure"
		if respErr != nil {
			reason = *respErr
		}
		return workflowOutcome{Status: "failed", FailureReason: &reason}
	}

	if !json.Valid(respBody) {
		reason := "implementation response was not valid JSON"
		return workflowOutcome{Status: "failed", FailureReason: &reason}
	}

	var shape struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &shape); err != nil {
		// Valid JSON but not matching the expected shape (e.g. a bare
		// array): fail the execution but keep the raw JSON so the next
		// driver tick can still see it.
		reason := "implementation response did not match the expected shape"
		return workflowOutcome{Status: "failed", FailureReason: &reason, ResultJSON: respBody}
	}

	if shape.Error != nil {
		return workflowOutcome{Status: "failed", FailureReason: shape.Error, ResultJSON: respBody}
	}

	return workflowOutcome{Status: "completed", ResultJSON: respBody}
}
