package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
)

// ScheduledRepository is a read-only view over scheduled_jobs: rows are
// system-owned, created by the materializers and mutated only by
// dispatch, the recorder, and the reaper.
type ScheduledRepository struct {
	db *gorm.DB
}

func NewScheduledRepository(db *gorm.DB) *ScheduledRepository {
	return &ScheduledRepository{db: db}
}

func (r *ScheduledRepository) FindByID(ctx context.Context, id string) (*models.ScheduledJob, error) {
	var job models.ScheduledJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *ScheduledRepository) List(ctx context.Context, filter models.ScheduledJobFilter) ([]models.ScheduledJob, int64, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	q := r.db.WithContext(ctx).Model(&models.ScheduledJob{}).Where("deleted_at IS NULL")
	if filter.TenantID != nil {
		q = q.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Region != "" {
		q = q.Where("region = ?", filter.Region)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []models.ScheduledJob
	err := q.Order("scheduled_at ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&jobs).Error
	return jobs, total, err
}

// Request loads the frozen request a scheduled job was dispatched with.
func (r *ScheduledRepository) Request(ctx context.Context, requestID string) (*models.HttpRequest, error) {
	var req models.HttpRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &req, nil
}
