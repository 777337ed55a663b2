package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
)

// Repository exposes the account lookups and mutations auth needs.
type Repository interface {
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	FindCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindCustomerByGoogleSubject(ctx context.Context, subject string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	LinkGoogleSubject(ctx context.Context, id uuid.UUID, subject string) error
	UpdateCustomerPassword(ctx context.Context, id uuid.UUID, passwordHash string) (int64, error)
	DeactivateCustomer(ctx context.Context, id uuid.UUID) (int64, error)
	TouchCustomerLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	FindEmployeeByEmail(ctx context.Context, email string) (*models.Employee, error)
	FindEmployeeByID(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	TouchEmployeeLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an auth repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		First(&customer, "lower(email) = ?", strings.ToLower(email)).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repositoryImpl) FindCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repositoryImpl) FindCustomerByGoogleSubject(ctx context.Context, subject string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "google_subject = ?", subject).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repositoryImpl) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repositoryImpl) LinkGoogleSubject(ctx context.Context, id uuid.UUID, subject string) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("google_subject", subject).Error
}

func (r *repositoryImpl) UpdateCustomerPassword(ctx context.Context, id uuid.UUID, passwordHash string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) DeactivateCustomer(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ? AND is_active", id).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) TouchCustomerLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

func (r *repositoryImpl) FindEmployeeByEmail(ctx context.Context, email string) (*models.Employee, error) {
	var employee models.Employee
	err := r.db.WithContext(ctx).
		First(&employee, "lower(email) = ?", strings.ToLower(email)).Error
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

func (r *repositoryImpl) FindEmployeeByID(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var employee models.Employee
	if err := r.db.WithContext(ctx).First(&employee, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

func (r *repositoryImpl) TouchEmployeeLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Employee{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}
