package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
)

// WorkflowRepository persists Workflow rows. Workflows run to
// completion once started, so there is no update or delete: the three
// workflow-driver schedulers own all further mutation of status,
// context, and result.
type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create inserts the workflow in its pending state with no executions.
// The no-execution scheduler spawns execution #0 on its next pass; the
// API never writes execution rows itself.
func (r *WorkflowRepository) Create(ctx context.Context, req models.CreateWorkflowRequest) (*models.Workflow, error) {
	input := req.Input
	if len(input) == 0 {
		input = []byte("{}")
	}
	wf := &models.Workflow{
		ID:                idgen.Generate("workflow"),
		Region:            req.Region,
		TenantID:          req.TenantID,
		ImplementationURL: req.ImplementationURL,
		Input:             input,
		Status:            models.WorkflowStatusPending,
		MaxRetries:        req.MaxRetries,
	}
	if err := r.db.WithContext(ctx).Create(wf).Error; err != nil {
		return nil, err
	}
	return wf, nil
}

func (r *WorkflowRepository) FindByID(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := r.db.WithContext(ctx).First(&wf, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *WorkflowRepository) List(ctx context.Context, tenantID *string, page, pageSize int) ([]models.Workflow, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	q := r.db.WithContext(ctx).Model(&models.Workflow{})
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var wfs []models.Workflow
	err := q.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&wfs).Error
	return wfs, total, err
}

// Executions lists a workflow's ticks in order, for the execution-trail
// view on the detail endpoint.
func (r *WorkflowRepository) Executions(ctx context.Context, workflowID string) ([]models.WorkflowExecution, error) {
	var execs []models.WorkflowExecution
	err := r.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("execution_index ASC").
		Find(&execs).Error
	return execs, err
}
