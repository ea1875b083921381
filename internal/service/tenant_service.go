package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rocktick/rocktick/internal/idgen"
	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/repository"
)

// TenantService owns tenant admission-control defaults: token bucket
// sizing and the refill cadence derived from the caller's
// tokens-per-day figure (see models.TokensPerDayToIncrement).
type TenantService struct {
	repo *repository.TenantRepository
}

func NewTenantService(repo *repository.TenantRepository) *TenantService {
	return &TenantService{repo: repo}
}

func (s *TenantService) Create(ctx context.Context, req *models.CreateTenantRequest) (*models.Tenant, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	increment, periodDays, periodMicros := models.TokensPerDayToIncrement(req.TokensPerDay)

	maxTimeoutMs := req.MaxTimeoutMs
	if maxTimeoutMs <= 0 {
		maxTimeoutMs = 60000
	}
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	retainForDays := req.RetainForDays
	if retainForDays <= 0 {
		retainForDays = 30
	}

	period := time.Duration(periodDays)*24*time.Hour + time.Duration(periodMicros)*time.Microsecond
	tenant := &models.Tenant{
		ID:            idgen.Generate("tenant"),
		Name:          req.Name,
		Region:        req.Region,
		Tokens:        req.MaxTokens,
		MaxTokens:     req.MaxTokens,
		Increment:     increment,
		PeriodDays:    periodDays,
		PeriodMicros:  periodMicros,
		NextIncrement: time.Now().UTC().Add(period),
		MaxTimeoutMs:  maxTimeoutMs,
		MaxRetries:    maxRetries,
		RetainForDays: retainForDays,
	}

	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

func (s *TenantService) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *TenantService) List(ctx context.Context, page, pageSize int) (*models.PageResult[models.Tenant], error) {
	tenants, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePageResult(page, pageSize)
	return &models.PageResult[models.Tenant]{
		Items:      tenants,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

// UpdateTokenPolicy adjusts a tenant's max tokens and refill cadence
// without touching its current token balance, so an in-flight refill
// window isn't disrupted mid-period.
func (s *TenantService) UpdateTokenPolicy(ctx context.Context, id string, maxTokens, tokensPerDay int32) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if maxTokens > 0 {
		tenant.MaxTokens = maxTokens
	}
	if tokensPerDay > 0 {
		increment, periodDays, periodMicros := models.TokensPerDayToIncrement(tokensPerDay)
		tenant.Increment = increment
		tenant.PeriodDays = periodDays
		tenant.PeriodMicros = periodMicros
	}
	if err := s.repo.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return tenant, nil
}

func (s *TenantService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func normalizePageResult(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
