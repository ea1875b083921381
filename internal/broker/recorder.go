package broker

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/dronerpc"
	"github.com/rocktick/rocktick/internal/idgen"
)

// Recorder durably applies one JobExecution frame at a time. Each
// frame gets its own transaction; frames are never batched.
type Recorder struct {
	DB *gorm.DB
}

type leasedRow struct {
	ID                  string
	WorkflowID          *string
	WorkflowExecutionID *string
}

// RecordFrame processes one frame and reports whether it was recorded
// (false means the lease was already reaped and the frame was silently
// dropped).
func (r *Recorder) RecordFrame(frame *dronerpc.JobExecutionFrame) (bool, error) {
	recorded := false
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var row leasedRow
		if err := tx.Raw(`
			SELECT id, workflow_id, workflow_execution_id FROM scheduled_jobs
			WHERE id = ? AND lock_nonce = ? FOR UPDATE
		`, frame.JobID, frame.LockNonce).Scan(&row).Error; err != nil {
			return fmt.Errorf("recorder: candidate query: %w", err)
		}
		if row.ID == "" {
			// Lease was already reaped; drop the frame silently.
			return nil
		}

		requestID := idgen.Generate("request")
		reqHeaders := FormatHeaders(StripRocktickHeaders(frame.ReqHeaders))
		if err := tx.Exec(`
			INSERT INTO http_requests (id, method, url, headers, body) VALUES (?, ?, ?, ?, ?)
		`, requestID, frame.ReqMethod, frame.ReqURL, reqHeaders, frame.ReqBody).Error; err != nil {
			return fmt.Errorf("recorder: insert request: %w", err)
		}

		var responseID *string
		if frame.Response != nil {
			id := idgen.Generate("response")
			respHeaders := FormatHeaders(frame.Response.Headers)
			if err := tx.Exec(`
				INSERT INTO http_responses (id, status, headers, body) VALUES (?, ?, ?, ?)
			`, id, frame.Response.Status, respHeaders, frame.Response.Body).Error; err != nil {
				return fmt.Errorf("recorder: insert response: %w", err)
			}
			responseID = &id
		}

		executedAt := time.UnixMilli(frame.ExecutedAtMs).UTC()
		if frame.ExecutedAtMs <= 0 {
			executedAt = time.Now().UTC()
		}

		executionID := idgen.Generate("job_execution")
		if err := tx.Exec(`
			INSERT INTO job_executions (id, executed_at, success, response_id, response_error, request_id)
			VALUES (?, ?, ?, ?, ?, ?)
		`, executionID, executedAt, frame.Success, responseID, frame.ResponseError, requestID).Error; err != nil {
			return fmt.Errorf("recorder: insert job execution: %w", err)
		}

		if row.WorkflowID != nil && row.WorkflowExecutionID != nil {
			var body []byte
			if frame.Response != nil {
				body = frame.Response.Body
			}
			if err := applyWorkflowSideEffect(tx, *row.WorkflowID, *row.WorkflowExecutionID, body, frame.Success, frame.ResponseError, executedAt); err != nil {
				return fmt.Errorf("recorder: workflow side effect: %w", err)
			}
		}

		if err := tx.Exec(`
			UPDATE scheduled_jobs SET execution_id = ?, lock_nonce = NULL WHERE id = ?
		`, executionID, row.ID).Error; err != nil {
			return fmt.Errorf("recorder: finalize scheduled job: %w", err)
		}

		recorded = true
		return nil
	})
	return recorded, err
}
