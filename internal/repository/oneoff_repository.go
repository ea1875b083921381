package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/broker"
	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
)

// OneOffJobRepository persists OneOffJob rows alongside the frozen
// HttpRequest each one owns. A one-off job's request never changes
// after creation; Update replaces it by creating a new HttpRequest row
// and deleting any not-yet-dispatched scheduled row so the
// materializer re-creates it against the new request.
type OneOffJobRepository struct {
	db *gorm.DB
}

func NewOneOffJobRepository(db *gorm.DB) *OneOffJobRepository {
	return &OneOffJobRepository{db: db}
}

// Create inserts the frozen request and the owning job in one transaction.
func (r *OneOffJobRepository) Create(ctx context.Context, req models.CreateOneOffJobRequest) (*models.OneOffJob, error) {
	var job *models.OneOffJob
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

		job = &models.OneOffJob{
			ID:         idgen.GenerateForTime("oneoff", req.ExecuteAt),
			Region:     req.Region,
			TenantID:   req.TenantID,
			RequestID:  httpReq.ID,
			ExecuteAt:  req.ExecuteAt,
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

func (r *OneOffJobRepository) FindByID(ctx context.Context, id string) (*models.OneOffJob, error) {
	var job models.OneOffJob
	if err := r.db.WithContext(ctx).First(&job, "id = ? AND deleted_at IS NULL", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *OneOffJobRepository) List(ctx context.Context, tenantID *string, page, pageSize int) ([]models.OneOffJob, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	q := r.db.WithContext(ctx).Model(&models.OneOffJob{}).Where("deleted_at IS NULL")
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []models.OneOffJob
	err := q.Order("execute_at ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&jobs).Error
	return jobs, total, err
}

// Update freezes a new HttpRequest for the job and drops any
// not-yet-dispatched scheduled row, so the materializer re-creates it
// against the new definition.
func (r *OneOffJobRepository) Update(ctx context.Context, id string, req models.UpdateOneOffJobRequest) (*models.OneOffJob, error) {
	var job models.OneOffJob
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
		job.ExecuteAt = req.ExecuteAt
		job.TimeoutMs = req.TimeoutMs
		job.MaxRetries = req.MaxRetries
		if err := tx.Save(&job).Error; err != nil {
			return err
		}

		return tx.Where("one_off_job_id = ? AND lock_nonce IS NULL AND execution_id IS NULL", id).
			Delete(&models.ScheduledJob{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Delete soft-deletes the job and removes any not-yet-dispatched
// scheduled row (state invariant: a deleted one-off job stops firing
// even if already materialized but not yet leased).
func (r *OneOffJobRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OneOffJob{}).
			Where("id = ?", id).
			Update("deleted_at", gorm.Expr("now()")).Error; err != nil {
			return err
		}
		return tx.Where("one_off_job_id = ? AND lock_nonce IS NULL AND execution_id IS NULL", id).
			Delete(&models.ScheduledJob{}).Error
	})
}
