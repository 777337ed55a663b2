package materials

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
)

type stubMaterialsRepo struct {
	rows      []models.Material
	created   *models.Material
	updates   map[string]any
	affected  int64
	createErr error
	updateErr error
}

func (s *stubMaterialsRepo) List(ctx context.Context, isActive *bool) ([]models.Material, error) {
	if isActive == nil {
		return s.rows, nil
	}
	filtered := make([]models.Material, 0, len(s.rows))
	for _, row := range s.rows {
		if row.IsActive == *isActive {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

func (s *stubMaterialsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return &s.rows[i], nil
		}
	}
	if s.created != nil && s.created.ID == id {
		return s.created, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubMaterialsRepo) Create(ctx context.Context, material *models.Material) error {
	if s.createErr != nil {
		return s.createErr
	}
	if material.ID == uuid.Nil {
		material.ID = uuid.New()
	}
	s.created = material
	return nil
}

func (s *stubMaterialsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	s.updates = updates
	return s.affected, nil
}

func (s *stubMaterialsRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.affected, nil
}

func TestCreateRequiresName(t *testing.T) {
	svc, err := NewService(&stubMaterialsRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateInput{Name: "   "})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateDuplicateNameConflicts(t *testing.T) {
	repo := &stubMaterialsRepo{createErr: errors.New(`duplicate key value violates unique constraint "ux_materials_name"`)}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateInput{Name: "Velvet", UnitPrice: decimal.NewFromInt(2)})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCreateTrimsAndDropsEmptyFeatures(t *testing.T) {
	repo := &stubMaterialsRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	material, err := svc.Create(context.Background(), CreateInput{
		Name:      " Velvet ",
		Features:  []string{" non-slip ", "", "  "},
		UnitPrice: decimal.NewFromFloat(1.50),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if material.Name != "Velvet" {
		t.Fatalf("expected trimmed name, got %q", material.Name)
	}
	if len(material.Features) != 1 || material.Features[0] != "non-slip" {
		t.Fatalf("unexpected features: %v", material.Features)
	}
	if !material.IsActive {
		t.Fatal("expected new materials to be active")
	}
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	repo := &stubMaterialsRepo{affected: 0}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	active := false
	_, err = svc.Update(context.Background(), uuid.New(), UpdateInput{IsActive: &active})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdatePartialTouchesOnlyProvidedFields(t *testing.T) {
	id := uuid.New()
	repo := &stubMaterialsRepo{
		affected: 1,
		rows: []models.Material{{
			ID:       id,
			Name:     "Wood",
			IsActive: true,
		}},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	active := false
	if _, err := svc.Update(context.Background(), id, UpdateInput{IsActive: &active}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(repo.updates) != 1 {
		t.Fatalf("expected single column update, got %v", repo.updates)
	}
	if repo.updates["is_active"] != false {
		t.Fatalf("expected is_active=false, got %v", repo.updates["is_active"])
	}
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	svc, err := NewService(&stubMaterialsRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Update(context.Background(), uuid.New(), UpdateInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteUnknownIDReturnsNotFound(t *testing.T) {
	svc, err := NewService(&stubMaterialsRepo{affected: 0})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Delete(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListFiltersActive(t *testing.T) {
	repo := &stubMaterialsRepo{rows: []models.Material{
		{ID: uuid.New(), Name: "Bamboo", IsActive: true},
		{ID: uuid.New(), Name: "Retired", IsActive: false},
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	active := true
	rows, err := svc.List(context.Background(), &active)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Bamboo" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
