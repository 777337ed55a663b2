package materials

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	pkgdb "github.com/gatsis/gatsishub-backend/pkg/db"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
)

const uniqueNameConstraint = "ux_materials_name"

// Service defines catalog operations for hanger materials.
type Service interface {
	List(ctx context.Context, isActive *bool) ([]models.Material, error)
	Create(ctx context.Context, input CreateInput) (*models.Material, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Material, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateInput carries a new catalog entry.
type CreateInput struct {
	Name         string
	Description  *string
	Features     []string
	UnitPrice    decimal.Decimal
	ImageURL     *string
	DisplayOrder int
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name         *string
	Description  *string
	Features     []string
	UnitPrice    *decimal.Decimal
	ImageURL     *string
	IsActive     *bool
	DisplayOrder *int
}

type service struct {
	repo Repository
}

// NewService wires the materials dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materials repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, isActive *bool) ([]models.Material, error) {
	rows, err := s.repo.List(ctx, isActive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materials")
	}
	return rows, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Material, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material name required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}

	material := &models.Material{
		Name:         name,
		Description:  input.Description,
		Features:     pq.StringArray(normalizeFeatures(input.Features)),
		UnitPrice:    input.UnitPrice,
		ImageURL:     input.ImageURL,
		IsActive:     true,
		DisplayOrder: input.DisplayOrder,
	}
	if err := s.repo.Create(ctx, material); err != nil {
		if pkgdb.IsUniqueViolation(err, uniqueNameConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "material name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create material")
	}
	return material, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Material, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "material name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Features != nil {
		updates["features"] = pq.StringArray(normalizeFeatures(input.Features))
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
		}
		updates["unit_price"] = *input.UnitPrice
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.DisplayOrder != nil {
		updates["display_order"] = *input.DisplayOrder
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	affected, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, uniqueNameConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "material name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update material")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}

	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload material")
	}
	return material, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete material")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	return nil
}

func normalizeFeatures(features []string) []string {
	cleaned := make([]string, 0, len(features))
	for _, feature := range features {
		if trimmed := strings.TrimSpace(feature); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
