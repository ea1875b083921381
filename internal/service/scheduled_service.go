package service

import (
	"context"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/repository"
)

// ScheduledJobService is a thin read-only facade: scheduled_jobs rows
// are entirely system-owned (materializers create them, dispatch/the
// recorder/the reaper mutate them), so the API surface is list/get only.
type ScheduledJobService struct {
	repo *repository.ScheduledRepository
}

func NewScheduledJobService(repo *repository.ScheduledRepository) *ScheduledJobService {
	return &ScheduledJobService{repo: repo}
}

func (s *ScheduledJobService) GetByID(ctx context.Context, id string) (*models.ScheduledJob, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ScheduledJobService) List(ctx context.Context, filter models.ScheduledJobFilter) (*models.PageResult[models.ScheduledJob], error) {
	jobs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page, pageSize := normalizePageResult(filter.Page, filter.PageSize)
	return &models.PageResult[models.ScheduledJob]{
		Items:      jobs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

func (s *ScheduledJobService) Request(ctx context.Context, requestID string) (*models.HttpRequest, error) {
	return s.repo.Request(ctx, requestID)
}
