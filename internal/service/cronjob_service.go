package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/repository"
)

// CronJobService validates schedule expressions up front with the
// same parser the cron expander uses at expansion time, so a bad
// schedule is rejected at creation rather than surfacing later as a
// cron_jobs.error row the expander has to skip.
type CronJobService struct {
	repo   *repository.CronJobRepository
	parser cron.Parser
}

func NewCronJobService(repo *repository.CronJobRepository) *CronJobService {
	return &CronJobService{
		repo:   repo,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *CronJobService) Create(ctx context.Context, req models.CreateCronJobRequest) (*models.CronJob, error) {
	if req.Method == "" {
		req.Method = "POST"
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.parser.Parse(req.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", req.Schedule, err)
	}

	job, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create cron job: %w", err)
	}
	return job, nil
}

// Update replaces the job's schedule, request, and retry policy, and
// always clears its error so a fixed schedule resumes expansion. The
// new schedule goes through the same parser the expander uses.
func (s *CronJobService) Update(ctx context.Context, id string, req models.UpdateCronJobRequest) (*models.CronJob, error) {
	if req.Method == "" {
		req.Method = "POST"
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.parser.Parse(req.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", req.Schedule, err)
	}

	job, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update cron job: %w", err)
	}
	return job, nil
}

func (s *CronJobService) GetByID(ctx context.Context, id string) (*models.CronJob, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *CronJobService) List(ctx context.Context, tenantID *string, page, pageSize int) (*models.PageResult[models.CronJob], error) {
	jobs, total, err := s.repo.List(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePageResult(page, pageSize)
	return &models.PageResult[models.CronJob]{
		Items:      jobs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

// ClearError re-enables expansion after a caller confirms the schedule
// (or downstream conditions) have been fixed.
func (s *CronJobService) ClearError(ctx context.Context, id string) error {
	return s.repo.ClearError(ctx, id)
}

func (s *CronJobService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
