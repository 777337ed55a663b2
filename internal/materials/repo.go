package materials

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
)

// Repository exposes persistence helpers for the material catalog.
type Repository interface {
	List(ctx context.Context, isActive *bool) ([]models.Material, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error)
	Create(ctx context.Context, material *models.Material) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a materials repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) List(ctx context.Context, isActive *bool) ([]models.Material, error) {
	query := r.db.WithContext(ctx).Model(&models.Material{})
	if isActive != nil {
		query = query.Where("is_active = ?", *isActive)
	}

	var rows []models.Material
	if err := query.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	var material models.Material
	if err := r.db.WithContext(ctx).First(&material, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *repositoryImpl) Create(ctx context.Context, material *models.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Material{}).
		Where("id = ?", id).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Material{}, "id = ?", id)
	return result.RowsAffected, result.Error
}
