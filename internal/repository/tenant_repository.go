package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
)

// TenantRepository persists Tenant rows.
type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TenantRepository) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepository) List(ctx context.Context, page, pageSize int) ([]models.Tenant, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Tenant{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tenants []models.Tenant
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tenants).Error
	return tenants, total, err
}

func (r *TenantRepository) Update(ctx context.Context, t *models.Tenant) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Tenant{}, "id = ?", id).Error
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
