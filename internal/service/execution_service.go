package service

import (
	"context"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/repository"
)

// JobExecutionService is a read-only facade over job_executions: rows
// are written once by the broker's recorder and never change again.
type JobExecutionService struct {
	repo *repository.ExecutionRepository
}

func NewJobExecutionService(repo *repository.ExecutionRepository) *JobExecutionService {
	return &JobExecutionService{repo: repo}
}

func (s *JobExecutionService) GetByID(ctx context.Context, id string) (*models.JobExecution, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *JobExecutionService) Response(ctx context.Context, responseID string) (*models.HttpResponse, error) {
	return s.repo.Response(ctx, responseID)
}

func (s *JobExecutionService) List(ctx context.Context, page, pageSize int) (*models.PageResult[models.JobExecution], error) {
	execs, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePageResult(page, pageSize)
	return &models.PageResult[models.JobExecution]{
		Items:      execs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}
