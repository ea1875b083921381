//go:build integration
// +build integration

package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rocktick/rocktick/internal/broker"
	"github.com/rocktick/rocktick/internal/database"
	"github.com/rocktick/rocktick/internal/dronerpc"
	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/repository"
	"github.com/rocktick/rocktick/internal/workflow"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres-backed tests")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, db.Exec(`TRUNCATE tenants, http_requests, http_responses, one_off_jobs,
		cron_jobs, scheduled_jobs, job_executions, workflows, workflow_executions,
		workflow_dependencies, drones, signing_keys`).Error)
	return db
}

func runOnce(t *testing.T, db *gorm.DB, r Runner) bool {
	t.Helper()
	var reached bool
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		reached, err = r.RunOnce(context.Background(), tx)
		return err
	})
	require.NoError(t, err)
	return reached
}

// drain runs r until it reports no more work, bounded so a livelocked
// candidate query fails the test instead of hanging it.
func drain(t *testing.T, db *gorm.DB, r Runner) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if runOnce(t, db, r) {
			return
		}
	}
	t.Fatalf("%s never reached end", r.Name())
}

func seedRequest(t *testing.T, db *gorm.DB, method, url string, body []byte) string {
	t.Helper()
	req := &models.HttpRequest{ID: idgen.Generate("request"), Method: method, URL: url, Body: body}
	require.NoError(t, db.Create(req).Error)
	return req.ID
}

func TestCronExpanderSeedsBoundedBacklog(t *testing.T) {
	db := openTestDB(t)
	reqID := seedRequest(t, db, "POST", "https://example.test/tick", nil)

	cronJob := &models.CronJob{
		ID:        idgen.Generate("cron"),
		Region:    "us-east",
		RequestID: reqID,
		Schedule:  "* * * * *",
	}
	require.NoError(t, db.Create(cronJob).Error)

	start := time.Now().UTC()
	drain(t, db, &CronExpander{BacklogCap: 60, Horizon: 15 * time.Minute})

	var rows []models.ScheduledJob
	require.NoError(t, db.Where("cron_job_id = ?", cronJob.ID).Order("scheduled_at ASC").Find(&rows).Error)

	assert.GreaterOrEqual(t, len(rows), 15)
	assert.LessOrEqual(t, len(rows), 60)
	for i, row := range rows {
		assert.True(t, row.ScheduledAt.Before(start.Add(15*time.Minute+time.Second)),
			"row %d scheduled past the horizon", i)
		if i > 0 {
			assert.False(t, row.ScheduledAt.Before(rows[i-1].ScheduledAt), "fire times out of order")
		}
		assert.Equal(t, "us-east", row.Region)
		assert.NotZero(t, row.Hash)
	}
}

func TestCronExpanderDisablesUnparseableSchedule(t *testing.T) {
	db := openTestDB(t)
	reqID := seedRequest(t, db, "POST", "https://example.test/tick", nil)

	cronJob := &models.CronJob{
		ID:        idgen.Generate("cron"),
		Region:    "us-east",
		RequestID: reqID,
		Schedule:  "not a schedule",
	}
	require.NoError(t, db.Create(cronJob).Error)

	exp := &CronExpander{BacklogCap: 60, Horizon: 15 * time.Minute}
	runOnce(t, db, exp)

	var got models.CronJob
	require.NoError(t, db.First(&got, "id = ?", cronJob.ID).Error)
	require.NotNil(t, got.Error)

	// Disabled means no longer a candidate.
	assert.True(t, runOnce(t, db, exp))
	var count int64
	require.NoError(t, db.Model(&models.ScheduledJob{}).Where("cron_job_id = ?", cronJob.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestOneOffMaterializerIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	reqID := seedRequest(t, db, "POST", "https://example.test/fire", nil)

	job := &models.OneOffJob{
		ID:        idgen.Generate("oneoff"),
		Region:    "us-east",
		RequestID: reqID,
		ExecuteAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, db.Create(job).Error)

	mat := &OneOffMaterializer{}
	drain(t, db, mat)
	drain(t, db, mat)

	var count int64
	require.NoError(t, db.Model(&models.ScheduledJob{}).Where("one_off_job_id = ?", job.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOneOffUpdateDropsQueuedRowAndRematerializes(t *testing.T) {
	db := openTestDB(t)
	repo := repository.NewOneOffJobRepository(db)
	ctx := context.Background()

	firstAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	job, err := repo.Create(ctx, models.CreateOneOffJobRequest{
		Region:    "us-east",
		Method:    "POST",
		URL:       "https://example.test/v1",
		ExecuteAt: firstAt,
	})
	require.NoError(t, err)

	mat := &OneOffMaterializer{}
	drain(t, db, mat)

	secondAt := firstAt.Add(time.Hour)
	updated, err := repo.Update(ctx, job.ID, models.UpdateOneOffJobRequest{
		Method:    "POST",
		URL:       "https://example.test/v2",
		ExecuteAt: secondAt,
	})
	require.NoError(t, err)
	assert.NotEqual(t, job.RequestID, updated.RequestID)

	// The queued row from the old definition is gone until the
	// materializer runs again.
	var count int64
	require.NoError(t, db.Model(&models.ScheduledJob{}).Where("one_off_job_id = ?", job.ID).Count(&count).Error)
	assert.Zero(t, count)

	drain(t, db, mat)

	var row models.ScheduledJob
	require.NoError(t, db.First(&row, "one_off_job_id = ?", job.ID).Error)
	assert.WithinDuration(t, secondAt, row.ScheduledAt, time.Second)

	var req models.HttpRequest
	require.NoError(t, db.First(&req, "id = ?", row.RequestID).Error)
	assert.Equal(t, "https://example.test/v2", req.URL)
}

// failScheduled records a failed execution against a scheduled row, the
// way the broker's recorder would, so the retry planner sees it.
func failScheduled(t *testing.T, db *gorm.DB, scheduledID, reqID string, executedAt time.Time) {
	t.Helper()
	exec := &models.JobExecution{
		ID:         idgen.Generate("job_execution"),
		ExecutedAt: executedAt,
		Success:    false,
		RequestID:  reqID,
	}
	require.NoError(t, db.Create(exec).Error)
	require.NoError(t, db.Exec(
		`UPDATE scheduled_jobs SET execution_id = ?, lock_nonce = NULL WHERE id = ?`,
		exec.ID, scheduledID).Error)
}

func TestRetryPlannerExponentialBackoffChain(t *testing.T) {
	db := openTestDB(t)
	reqID := seedRequest(t, db, "POST", "https://example.test/fire", nil)

	oneOff := &models.OneOffJob{
		ID:         idgen.Generate("oneoff"),
		Region:     "us-east",
		RequestID:  reqID,
		ExecuteAt:  time.Now().UTC().Add(-time.Hour),
		MaxRetries: 3,
	}
	require.NoError(t, db.Create(oneOff).Error)

	t0 := time.Now().UTC().Truncate(time.Second).Add(-30 * time.Minute)
	original := &models.ScheduledJob{
		ID:          idgen.GenerateForTime("scheduled_job", t0),
		Hash:        idgen.ShardHash("x"),
		Region:      "us-east",
		ScheduledAt: t0,
		OneOffJobID: &oneOff.ID,
		RequestID:   reqID,
		MaxRetries:  3,
	}
	require.NoError(t, db.Create(original).Error)

	planner := &RetryPlanner{BaseDelay: time.Minute}

	// First failure: successor at +60s with two retries left.
	failScheduled(t, db, original.ID, reqID, t0)
	drain(t, db, planner)

	var s1 models.ScheduledJob
	require.NoError(t, db.First(&s1, "retry_for_id = ?", original.ID).Error)
	assert.WithinDuration(t, t0.Add(time.Minute), s1.ScheduledAt, time.Second)
	assert.Equal(t, int32(2), s1.MaxRetries)
	assert.Equal(t, oneOff.ID, *s1.OneOffJobID)

	// Second failure: first retry still gets the base delay.
	failScheduled(t, db, s1.ID, reqID, t0.Add(time.Minute))
	drain(t, db, planner)

	var s2 models.ScheduledJob
	require.NoError(t, db.First(&s2, "retry_for_id = ?", s1.ID).Error)
	assert.WithinDuration(t, t0.Add(2*time.Minute), s2.ScheduledAt, time.Second)
	assert.Equal(t, int32(1), s2.MaxRetries)

	// Third failure: backoff doubles.
	failScheduled(t, db, s2.ID, reqID, t0.Add(2*time.Minute))
	drain(t, db, planner)

	var s3 models.ScheduledJob
	require.NoError(t, db.First(&s3, "retry_for_id = ?", s2.ID).Error)
	assert.WithinDuration(t, t0.Add(4*time.Minute), s3.ScheduledAt, time.Second)
	assert.Equal(t, int32(0), s3.MaxRetries)

	// Terminal failure: budget exhausted, no further successor.
	failScheduled(t, db, s3.ID, reqID, t0.Add(4*time.Minute))
	drain(t, db, planner)

	var count int64
	require.NoError(t, db.Model(&models.ScheduledJob{}).Where("retry_for_id = ?", s3.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTenantTokenRefill(t *testing.T) {
	db := openTestDB(t)

	tenant := &models.Tenant{
		ID:            idgen.Generate("tenant"),
		Name:          "acme",
		Region:        "us-east",
		Tokens:        0,
		MaxTokens:     10,
		Increment:     2,
		PeriodMicros:  int64(time.Minute / time.Microsecond),
		NextIncrement: time.Now().UTC().Add(-time.Second),
	}
	require.NoError(t, db.Create(tenant).Error)

	refill := &TenantTokenRefill{}
	runOnce(t, db, refill)

	var got models.Tenant
	require.NoError(t, db.First(&got, "id = ?", tenant.ID).Error)
	assert.Equal(t, int32(2), got.Tokens)
	assert.WithinDuration(t, tenant.NextIncrement.Add(time.Minute), got.NextIncrement, time.Second)

	// Saturated: clamp at max and push the next refill out to at least
	// five minutes so a full bucket doesn't busy-loop.
	require.NoError(t, db.Exec(`UPDATE tenants SET tokens = 9, next_increment = now() - interval '1 second' WHERE id = ?`, tenant.ID).Error)
	runOnce(t, db, refill)

	require.NoError(t, db.First(&got, "id = ?", tenant.ID).Error)
	assert.Equal(t, int32(10), got.Tokens)
	assert.True(t, got.NextIncrement.After(time.Now().UTC().Add(4*time.Minute)))

	// A full bucket is not a candidate at all.
	assert.True(t, runOnce(t, db, refill))
}

// leaseAndRecord simulates a drone executing a workflow-owned scheduled
// job: lease the row, then feed the response through the broker's
// recorder so the workflow side effect runs.
func leaseAndRecord(t *testing.T, db *gorm.DB, job models.ScheduledJob, respBody []byte) {
	t.Helper()
	nonce := time.Now().Unix()
	require.NoError(t, db.Exec(
		`UPDATE scheduled_jobs SET lock_nonce = ?, times_locked = times_locked + 1 WHERE id = ?`,
		nonce, job.ID).Error)

	rec := &broker.Recorder{DB: db}
	recorded, err := rec.RecordFrame(&dronerpc.JobExecutionFrame{
		JobID:        job.ID,
		LockNonce:    nonce,
		Success:      true,
		Response:     &dronerpc.ResponseFrame{Status: 200, Body: respBody},
		ReqMethod:    "POST",
		ReqURL:       "https://impl.test/workflow",
		ExecutedAtMs: time.Now().UnixMilli(),
	})
	require.NoError(t, err)
	require.True(t, recorded)
}

func workflowScheduledJob(t *testing.T, db *gorm.DB, executionID string) models.ScheduledJob {
	t.Helper()
	var job models.ScheduledJob
	require.NoError(t, db.First(&job, "workflow_execution_id = ? AND execution_id IS NULL", executionID).Error)
	return job
}

func TestWorkflowHappyPath(t *testing.T) {
	db := openTestDB(t)

	wf := &models.Workflow{
		ID:                idgen.Generate("workflow"),
		Region:            "us-east",
		ImplementationURL: "https://impl.test/workflow",
		Input:             json.RawMessage(`{"seed":1}`),
		Status:            models.WorkflowStatusPending,
		MaxRetries:        3,
	}
	require.NoError(t, db.Create(wf).Error)

	noExec := &WorkflowNoExecution{}
	pending := &WorkflowPendingExecution{}
	waited := &WorkflowWaitedExecution{}

	// A spawns execution #0.
	runOnce(t, db, noExec)
	var execs []models.WorkflowExecution
	require.NoError(t, db.Where("workflow_id = ?", wf.ID).Order("execution_index ASC").Find(&execs).Error)
	require.Len(t, execs, 1)
	assert.Equal(t, models.WorkflowExecutionPending, execs[0].Status)
	assert.False(t, execs[0].IsRetry)

	// B has nothing declared yet; #0 just starts waiting.
	runOnce(t, db, pending)
	// C schedules the first implementation POST.
	runOnce(t, db, waited)

	job0 := workflowScheduledJob(t, db, execs[0].ID)
	var req0 models.HttpRequest
	require.NoError(t, db.First(&req0, "id = ?", job0.RequestID).Error)
	assert.Equal(t, "POST", req0.Method)
	assert.Equal(t, wf.ImplementationURL, req0.URL)

	// The implementation declares two children, one in each tolerated
	// shape.
	leaseAndRecord(t, db, job0, []byte(`{
		"new_children": {
			"alpha": {"url": "https://child.test/impl", "input": {"n": 1}},
			"beta":  ["https://child2.test/impl", {"n": 2}]
		}
	}`))

	var exec0 models.WorkflowExecution
	require.NoError(t, db.First(&exec0, "id = ?", execs[0].ID).Error)
	assert.Equal(t, models.WorkflowExecutionCompleted, exec0.Status)

	// A spawns #1; B materializes both children.
	runOnce(t, db, noExec)
	runOnce(t, db, pending)

	require.NoError(t, db.Where("workflow_id = ?", wf.ID).Order("execution_index ASC").Find(&execs).Error)
	require.Len(t, execs, 2)
	assert.Equal(t, models.WorkflowExecutionWaiting, execs[1].Status)
	assert.False(t, execs[1].IsRetry)

	var deps []models.WorkflowDependency
	require.NoError(t, db.Where("workflow_execution_id = ?", execs[1].ID).Find(&deps).Error)
	require.Len(t, deps, 2)

	var children int64
	require.NoError(t, db.Model(&models.Workflow{}).
		Where("id IN (?) AND status = 'pending'",
			[]string{*deps[0].ChildWorkflowID, *deps[1].ChildWorkflowID}).
		Count(&children).Error)
	assert.Equal(t, int64(2), children)

	// C must not fire while the children are unresolved.
	assert.True(t, runOnce(t, db, waited))

	require.NoError(t, db.Exec(
		`UPDATE workflows SET status = 'completed', result = '{"ok":true}' WHERE id IN (?, ?)`,
		*deps[0].ChildWorkflowID, *deps[1].ChildWorkflowID).Error)

	// Children done: C rebuilds the context and schedules POST #2.
	runOnce(t, db, waited)

	job1 := workflowScheduledJob(t, db, execs[1].ID)
	var req1 models.HttpRequest
	require.NoError(t, db.First(&req1, "id = ?", job1.RequestID).Error)

	var ctxBody workflow.Context
	require.NoError(t, json.Unmarshal(req1.Body, &ctxBody))
	assert.JSONEq(t, `{"seed":1}`, string(ctxBody.Input))
	require.Contains(t, ctxBody.ChildWorkflows, "alpha")
	require.Contains(t, ctxBody.ChildWorkflows, "beta")
	assert.Equal(t, "success", ctxBody.ChildWorkflows["alpha"].Type)
	assert.JSONEq(t, `{"ok":true}`, string(ctxBody.ChildWorkflows["beta"].Data))

	// The implementation returns its final result.
	leaseAndRecord(t, db, job1, []byte(`{"result": {"final": 42}}`))
	runOnce(t, db, noExec)

	var got models.Workflow
	require.NoError(t, db.First(&got, "id = ?", wf.ID).Error)
	assert.Equal(t, models.WorkflowStatusCompleted, got.Status)
	assert.JSONEq(t, `{"final": 42}`, string(got.Result))
	assert.Nil(t, got.Error)
}

func TestWorkflowRetriesThenFails(t *testing.T) {
	db := openTestDB(t)

	wf := &models.Workflow{
		ID:                idgen.Generate("workflow"),
		Region:            "us-east",
		ImplementationURL: "https://impl.test/workflow",
		Input:             json.RawMessage(`{}`),
		Status:            models.WorkflowStatusPending,
		MaxRetries:        1,
	}
	require.NoError(t, db.Create(wf).Error)

	noExec := &WorkflowNoExecution{}
	pending := &WorkflowPendingExecution{}
	waited := &WorkflowWaitedExecution{}

	failOnce := func() {
		runOnce(t, db, noExec)
		runOnce(t, db, pending)
		runOnce(t, db, waited)
		var exec models.WorkflowExecution
		require.NoError(t, db.Where("workflow_id = ? AND status = 'scheduled'", wf.ID).First(&exec).Error)
		leaseAndRecord(t, db, workflowScheduledJob(t, db, exec.ID), []byte(`{"error": "implementation exploded"}`))
	}

	// First failure consumes the single retry; the second finalizes.
	failOnce()
	runOnce(t, db, noExec)
	var execs []models.WorkflowExecution
	require.NoError(t, db.Where("workflow_id = ?", wf.ID).Order("execution_index ASC").Find(&execs).Error)
	require.Len(t, execs, 2)
	assert.True(t, execs[1].IsRetry)

	runOnce(t, db, pending)
	runOnce(t, db, waited)
	leaseAndRecord(t, db, workflowScheduledJob(t, db, execs[1].ID), []byte(`{"error": "still broken"}`))
	runOnce(t, db, noExec)

	var got models.Workflow
	require.NoError(t, db.First(&got, "id = ?", wf.ID).Error)
	assert.Equal(t, models.WorkflowStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "still broken", *got.Error)

	// Prior failures surface in the persisted context's error log.
	var ctxBody workflow.Context
	require.NoError(t, json.Unmarshal(got.Context, &ctxBody))
	require.NotEmpty(t, ctxBody.PrevErrors)
	assert.Equal(t, "implementation exploded", ctxBody.PrevErrors[0].Message)
}
