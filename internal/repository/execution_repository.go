package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
)

// ExecutionRepository is a read-only view over job_executions: rows are
// immutable once the recorder inserts them.
type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

func (r *ExecutionRepository) FindByID(ctx context.Context, id string) (*models.JobExecution, error) {
	var exec models.JobExecution
	if err := r.db.WithContext(ctx).First(&exec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &exec, nil
}

// Response loads the frozen response a completed execution recorded,
// if the drone returned one (a transport failure leaves ResponseID nil).
func (r *ExecutionRepository) Response(ctx context.Context, responseID string) (*models.HttpResponse, error) {
	var resp models.HttpResponse
	if err := r.db.WithContext(ctx).First(&resp, "id = ?", responseID).Error; err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *ExecutionRepository) List(ctx context.Context, page, pageSize int) ([]models.JobExecution, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.JobExecution{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var execs []models.JobExecution
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&execs).Error
	return execs, total, err
}
