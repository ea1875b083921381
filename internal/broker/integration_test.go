//go:build integration
// +build integration

package broker

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rocktick/rocktick/internal/config"
	"github.com/rocktick/rocktick/internal/database"
	"github.com/rocktick/rocktick/internal/dronerpc"
	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/secrets"
	"github.com/rocktick/rocktick/internal/signing"
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

func testBrokerConfig() config.BrokerConfig {
	return config.BrokerConfig{
		HomeRegionWindow:      3 * time.Second,
		SpilloverWindow:       5 * time.Second,
		AnonymousCandidateCap: 100,
		DispatchChannelSize:   32,
		DefaultTimeoutMs:      60000,
	}
}

func dispatch(t *testing.T, db *gorm.DB, d *Dispatcher, region string) []dronerpc.JobSpec {
	t.Helper()
	var specs []dronerpc.JobSpec
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		specs, err = d.Dispatch(context.Background(), tx, region)
		return err
	})
	require.NoError(t, err)
	return specs
}

func seedTenant(t *testing.T, db *gorm.DB, tokens, maxTokens int32) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		ID:            idgen.Generate("tenant"),
		Name:          "acme",
		Region:        "us-east",
		Tokens:        tokens,
		MaxTokens:     maxTokens,
		Increment:     1,
		PeriodMicros:  int64(time.Minute / time.Microsecond),
		NextIncrement: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func seedQueuedJob(t *testing.T, db *gorm.DB, tenantID *string, region, url string, body []byte, scheduledAt time.Time) *models.ScheduledJob {
	t.Helper()
	req := &models.HttpRequest{ID: idgen.Generate("request"), Method: "POST", URL: url, Body: body}
	require.NoError(t, db.Create(req).Error)

	oneOff := &models.OneOffJob{
		ID:        idgen.Generate("oneoff"),
		Region:    region,
		TenantID:  tenantID,
		RequestID: req.ID,
		ExecuteAt: scheduledAt,
	}
	require.NoError(t, db.Create(oneOff).Error)

	job := &models.ScheduledJob{
		ID:          idgen.GenerateForTime("scheduled_job", scheduledAt),
		Hash:        idgen.ShardHash(url),
		Region:      region,
		ScheduledAt: scheduledAt,
		TenantID:    tenantID,
		OneOffJobID: &oneOff.ID,
		RequestID:   req.ID,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func TestDispatchRespectsTenantTokens(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db, 2, 2)

	due := time.Now().UTC().Add(-time.Second)
	for i := 0; i < 5; i++ {
		seedQueuedJob(t, db, &tenant.ID, "us-east",
			fmt.Sprintf("https://example.test/hook/%d", i), nil, due.Add(time.Duration(i)*time.Millisecond))
	}

	d := &Dispatcher{Cfg: testBrokerConfig()}
	specs := dispatch(t, db, d, "us-east")
	require.Len(t, specs, 2)
	for _, spec := range specs {
		assert.NotZero(t, spec.LockNonce)
		assert.Equal(t, int32(60000), spec.TimeoutMs)
		assert.Equal(t, spec.JobID, spec.Headers["Rocktick-Job-Id"])
	}

	var got models.Tenant
	require.NoError(t, db.First(&got, "id = ?", tenant.ID).Error)
	assert.Equal(t, int32(0), got.Tokens)

	// Budget exhausted: nothing more until a refill.
	assert.Empty(t, dispatch(t, db, d, "us-east"))

	var leased int64
	require.NoError(t, db.Model(&models.ScheduledJob{}).
		Where("tenant_id = ? AND lock_nonce IS NOT NULL", tenant.ID).Count(&leased).Error)
	assert.Equal(t, int64(2), leased)
}

func TestDispatchSpilloverWindow(t *testing.T) {
	db := openTestDB(t)

	// Due now in another region: only its home region may take it yet.
	fresh := seedQueuedJob(t, db, nil, "eu-west", "https://example.test/fresh", nil, time.Now().UTC())
	// Overdue past the spillover window: anyone may take it.
	stale := seedQueuedJob(t, db, nil, "eu-west", "https://example.test/stale", nil, time.Now().UTC().Add(-10*time.Second))

	d := &Dispatcher{Cfg: testBrokerConfig()}
	specs := dispatch(t, db, d, "us-east")
	require.Len(t, specs, 1)
	assert.Equal(t, stale.ID, specs[0].JobID)

	var unleased models.ScheduledJob
	require.NoError(t, db.First(&unleased, "id = ?", fresh.ID).Error)
	assert.Nil(t, unleased.LockNonce)
}

func TestLeaseReaperRecoversAndRefunds(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db, 0, 2)

	timeoutMs := int32(1000)
	job := seedQueuedJob(t, db, &tenant.ID, "us-east", "https://example.test/hook", nil, time.Now().UTC().Add(-5*time.Minute))
	expiredNonce := time.Now().Add(-2 * time.Minute).Unix()
	require.NoError(t, db.Exec(
		`UPDATE scheduled_jobs SET lock_nonce = ?, timeout_ms = ?, times_locked = 1 WHERE id = ?`,
		expiredNonce, timeoutMs, job.ID).Error)

	reaper := &Reaper{DB: db, Log: zerolog.Nop(), Interval: 15 * time.Second, Slack: 90 * time.Second}
	require.NoError(t, reaper.RunOnce(context.Background()))

	var got models.ScheduledJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)
	assert.Nil(t, got.LockNonce)
	assert.Nil(t, got.ExecutionID)

	var gotTenant models.Tenant
	require.NoError(t, db.First(&gotTenant, "id = ?", tenant.ID).Error)
	assert.Equal(t, int32(1), gotTenant.Tokens)

	// Idempotent: a second pass finds nothing and changes nothing.
	require.NoError(t, reaper.RunOnce(context.Background()))
	require.NoError(t, db.First(&gotTenant, "id = ?", tenant.ID).Error)
	assert.Equal(t, int32(1), gotTenant.Tokens)
}

func TestLeaseReaperLeavesLiveLeasesAlone(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db, 0, 2)

	job := seedQueuedJob(t, db, &tenant.ID, "us-east", "https://example.test/hook", nil, time.Now().UTC())
	liveNonce := time.Now().Unix()
	require.NoError(t, db.Exec(
		`UPDATE scheduled_jobs SET lock_nonce = ?, timeout_ms = 60000 WHERE id = ?`,
		liveNonce, job.ID).Error)

	reaper := &Reaper{DB: db, Log: zerolog.Nop(), Interval: 15 * time.Second, Slack: 90 * time.Second}
	require.NoError(t, reaper.RunOnce(context.Background()))

	var got models.ScheduledJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)
	require.NotNil(t, got.LockNonce)
	assert.Equal(t, liveNonce, *got.LockNonce)
}

func TestRecorderIsIdempotentPerLease(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db, 1, 1)

	job := seedQueuedJob(t, db, &tenant.ID, "us-east", "https://example.test/hook", nil, time.Now().UTC())
	nonce := time.Now().Unix()
	require.NoError(t, db.Exec(
		`UPDATE scheduled_jobs SET lock_nonce = ?, times_locked = 1 WHERE id = ?`, nonce, job.ID).Error)

	frame := &dronerpc.JobExecutionFrame{
		JobID:     job.ID,
		LockNonce: nonce,
		Success:   true,
		Response:  &dronerpc.ResponseFrame{Status: 200, Body: []byte("ok")},
		ReqMethod: "POST",
		ReqURL:    "https://example.test/hook",
		ReqHeaders: map[string]string{
			"Content-Type":    "application/json",
			"Rocktick-Job-Id": job.ID, // must never reach storage
		},
		ExecutedAtMs: time.Now().UnixMilli(),
	}

	rec := &Recorder{DB: db}
	recorded, err := rec.RecordFrame(frame)
	require.NoError(t, err)
	require.True(t, recorded)

	var got models.ScheduledJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)
	require.NotNil(t, got.ExecutionID)
	assert.Nil(t, got.LockNonce)

	var exec models.JobExecution
	require.NoError(t, db.First(&exec, "id = ?", *got.ExecutionID).Error)
	assert.True(t, exec.Success)
	require.NotNil(t, exec.ResponseID)

	var sentReq models.HttpRequest
	require.NoError(t, db.First(&sentReq, "id = ?", exec.RequestID).Error)
	assert.NotContains(t, sentReq.Headers, "Rocktick-Job-Id")
	assert.Contains(t, sentReq.Headers, "Content-Type")

	// A retransmitted frame matches no lease and is a silent no-op.
	recorded, err = rec.RecordFrame(frame)
	require.NoError(t, err)
	assert.False(t, recorded)

	var execCount int64
	require.NoError(t, db.Model(&models.JobExecution{}).Count(&execCount).Error)
	assert.Equal(t, int64(1), execCount)

	// Tokens are consumed, not refunded, on completion.
	var gotTenant models.Tenant
	require.NoError(t, db.First(&gotTenant, "id = ?", tenant.ID).Error)
	assert.Equal(t, int32(1), gotTenant.Tokens)
}

func TestDispatchSignsWithTenantSecret(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db, 1, 1)

	var master [32]byte
	_, err := io.ReadFull(rand.Reader, master[:])
	require.NoError(t, err)
	keyring, err := secrets.NewKeyRing([]secrets.MasterKey{{ID: 1, Key: master}})
	require.NoError(t, err)

	secret := []byte("tenant-signing-secret")
	sealed, err := keyring.Seal(1, 1, secret)
	require.NoError(t, err)
	sealed.ID = idgen.Generate("signing_key")
	sealed.TenantID = tenant.ID
	require.NoError(t, db.Create(sealed).Error)
	require.NoError(t, db.Exec(
		`UPDATE tenants SET current_signing_key_id = ? WHERE id = ?`, sealed.ID, tenant.ID).Error)

	seedQueuedJob(t, db, &tenant.ID, "us-east", "https://x.test/hook", []byte("hi"), time.Now().UTC())

	d := &Dispatcher{Keyring: keyring, Cfg: testBrokerConfig()}
	specs := dispatch(t, db, d, "us-east")
	require.Len(t, specs, 1)

	raw, ok := specs[0].Headers["Rocktick-Signature"]
	require.True(t, ok, "signed tenant dispatch must carry a signature header")

	var hdr signing.Header
	require.NoError(t, json.Unmarshal([]byte(raw), &hdr))
	assert.Equal(t, "/hook", hdr.P)

	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, ".%d./hook.hi", hdr.T)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), hdr.V1)
}

func TestDispatchProceedsUnsignedOnKeyringFailure(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db, 1, 1)

	// A signing key sealed under a master key this process doesn't hold.
	var master [32]byte
	_, err := io.ReadFull(rand.Reader, master[:])
	require.NoError(t, err)
	sealRing, err := secrets.NewKeyRing([]secrets.MasterKey{{ID: 7, Key: master}})
	require.NoError(t, err)
	sealed, err := sealRing.Seal(7, 1, []byte("unreachable"))
	require.NoError(t, err)
	sealed.ID = idgen.Generate("signing_key")
	sealed.TenantID = tenant.ID
	require.NoError(t, db.Create(sealed).Error)
	require.NoError(t, db.Exec(
		`UPDATE tenants SET current_signing_key_id = ? WHERE id = ?`, sealed.ID, tenant.ID).Error)

	var other [32]byte
	_, err = io.ReadFull(rand.Reader, other[:])
	require.NoError(t, err)
	brokerRing, err := secrets.NewKeyRing([]secrets.MasterKey{{ID: 8, Key: other}})
	require.NoError(t, err)

	seedQueuedJob(t, db, &tenant.ID, "us-east", "https://x.test/hook", nil, time.Now().UTC())

	d := &Dispatcher{Keyring: brokerRing, Cfg: testBrokerConfig()}
	specs := dispatch(t, db, d, "us-east")
	require.Len(t, specs, 1)

	// The job still goes out, just without a signature.
	_, signedAnyway := specs[0].Headers["Rocktick-Signature"]
	assert.False(t, signedAnyway)
	assert.Equal(t, specs[0].JobID, specs[0].Headers["Rocktick-Job-Id"])
}
