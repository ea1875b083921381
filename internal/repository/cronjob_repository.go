package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/broker"
	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
)

// CronJobRepository persists CronJob rows. The cron expander reads
// undeleted, error-free rows directly; Delete here only soft-deletes
// the definition, leaving already-materialized scheduled rows to run
// to completion.
type CronJobRepository struct {
	db *gorm.DB
}

func NewCronJobRepository(db *gorm.DB) *CronJobRepository {
	return &CronJobRepository{db: db}
}

func (r *CronJobRepository) Create(ctx context.Context, req models.CreateCronJobRequest) (*models.CronJob, error) {
	var job *models.CronJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		httpReq := &models.HttpRequest{
			ID:      idgen.Generate("request"),
			Method:  req.Method,
			URL:     req.URL,
			Headers: broker.FormatHeaders(req.Headers),
			Body:    req.Body,
		}
		if err := tx.Create(httpReq).Error; err != nil {
			return err
		}

		job = &models.CronJob{
			ID:         idgen.Generate("cron"),
			Region:     req.Region,
			TenantID:   req.TenantID,
			RequestID:  httpReq.ID,
			Schedule:   req.Schedule,
			TimeoutMs:  req.TimeoutMs,
			MaxRetries: req.MaxRetries,
		}
		return tx.Create(job).Error
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *CronJobRepository) FindByID(ctx context.Context, id string) (*models.CronJob, error) {
	var job models.CronJob
	if err := r.db.WithContext(ctx).First(&job, "id = ? AND deleted_at IS NULL", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *CronJobRepository) List(ctx context.Context, tenantID *string, page, pageSize int) ([]models.CronJob, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	q := r.db.WithContext(ctx).Model(&models.CronJob{}).Where("deleted_at IS NULL")
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []models.CronJob
	err := q.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&jobs).Error
	return jobs, total, err
}

// Update freezes a new HttpRequest, replaces the schedule and retry
// policy, and clears the job's error so the expander resumes. Queued,
// unleased scheduled rows are dropped so the new definition takes
// effect immediately rather than behind the old backlog.
func (r *CronJobRepository) Update(ctx context.Context, id string, req models.UpdateCronJobRequest) (*models.CronJob, error) {
	var job models.CronJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, "id = ? AND deleted_at IS NULL", id).Error; err != nil {
			return err
		}

		httpReq := &models.HttpRequest{
			ID:      idgen.Generate("request"),
			Method:  req.Method,
			URL:     req.URL,
			Headers: broker.FormatHeaders(req.Headers),
			Body:    req.Body,
		}
		if err := tx.Create(httpReq).Error; err != nil {
			return err
		}

		job.RequestID = httpReq.ID
		job.Schedule = req.Schedule
		job.TimeoutMs = req.TimeoutMs
		job.MaxRetries = req.MaxRetries
		job.Error = nil
		if err := tx.Save(&job).Error; err != nil {
			return err
		}

		return tx.Where("cron_job_id = ? AND lock_nonce IS NULL AND execution_id IS NULL", id).
			Delete(&models.ScheduledJob{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClearError resets a failed cron job's error so the expander resumes
// expanding it, used by PATCH when a caller fixes downstream conditions
// without touching the definition itself.
func (r *CronJobRepository) ClearError(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.CronJob{}).
		Where("id = ?", id).
		Update("error", nil).Error
}

func (r *CronJobRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.CronJob{}).
		Where("id = ?", id).
		Update("deleted_at", gorm.Expr("now()")).Error
}
