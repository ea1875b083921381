package service

import (
	"context"
	"fmt"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/repository"
)

// OneOffJobService wraps OneOffJobRepository; the one-off retention
// sweeper is the only other writer of the rows it fronts, so this
// layer sticks to request validation and defaults.
type OneOffJobService struct {
	repo *repository.OneOffJobRepository
}

func NewOneOffJobService(repo *repository.OneOffJobRepository) *OneOffJobService {
	return &OneOffJobService{repo: repo}
}

func (s *OneOffJobService) Create(ctx context.Context, req models.CreateOneOffJobRequest) (*models.OneOffJob, error) {
	if req.Method == "" {
		req.Method = "POST"
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	job, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create one-off job: %w", err)
	}
	return job, nil
}

// Update replaces the job's frozen request and fire time. The
// repository drops any not-yet-dispatched scheduled row in the same
// transaction, so the materializer re-creates it from the new
// definition.
func (s *OneOffJobService) Update(ctx context.Context, id string, req models.UpdateOneOffJobRequest) (*models.OneOffJob, error) {
	if req.Method == "" {
		req.Method = "POST"
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	job, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update one-off job: %w", err)
	}
	return job, nil
}

func (s *OneOffJobService) GetByID(ctx context.Context, id string) (*models.OneOffJob, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *OneOffJobService) List(ctx context.Context, tenantID *string, page, pageSize int) (*models.PageResult[models.OneOffJob], error) {
	jobs, total, err := s.repo.List(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePageResult(page, pageSize)
	return &models.PageResult[models.OneOffJob]{
		Items:      jobs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

func (s *OneOffJobService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
