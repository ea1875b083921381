package service

import (
	"context"
	"fmt"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/repository"
)

// WorkflowService fronts WorkflowRepository. Workflows are read-mostly
// from the API's perspective: once started, only the three workflow
// driver schedulers (see internal/scheduler/workflow_*.go) advance them.
type WorkflowService struct {
	repo *repository.WorkflowRepository
}

func NewWorkflowService(repo *repository.WorkflowRepository) *WorkflowService {
	return &WorkflowService{repo: repo}
}

func (s *WorkflowService) Create(ctx context.Context, req models.CreateWorkflowRequest) (*models.Workflow, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	wf, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	return wf, nil
}

func (s *WorkflowService) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *WorkflowService) List(ctx context.Context, tenantID *string, page, pageSize int) (*models.PageResult[models.Workflow], error) {
	wfs, total, err := s.repo.List(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePageResult(page, pageSize)
	return &models.PageResult[models.Workflow]{
		Items:      wfs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

func (s *WorkflowService) Executions(ctx context.Context, workflowID string) ([]models.WorkflowExecution, error) {
	return s.repo.Executions(ctx, workflowID)
}
