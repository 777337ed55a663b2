package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/pagination"
)

// ListFilters narrows order list queries.
type ListFilters struct {
	CustomerID *uuid.UUID
	Status     *enums.OrderStatus
}

type listOrdersParams struct {
	Filters ListFilters
	Limit   int
	Cursor  *pagination.Cursor
}

// Repository exposes persistence helpers for orders and their logs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Order, error)
	Logs(ctx context.Context, orderID uuid.UUID) ([]models.OrderLog, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error)
	AppendLog(ctx context.Context, log *models.OrderLog) error
	SetPaymentVerified(ctx context.Context, id uuid.UUID, verified bool) (int64, error)
	FindDueBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Material").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Preload("Customer").
		Preload("Material")
	if params.Filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.Filters.CustomerID)
	}
	if params.Filters.Status != nil {
		query = query.Where("status = ?", *params.Filters.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}

// ListByTeam returns orders assigned to a team through its active quotas.
func (r *repositoryImpl) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Material").
		Joins("JOIN quota_orders qo ON qo.order_id = orders.id").
		Joins("JOIN quotas q ON q.id = qo.quota_id").
		Where("q.team_id = ? AND q.status = ?", teamID, enums.QuotaStatusActive).
		Order("orders.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) Logs(ctx context.Context, orderID uuid.UUID) ([]models.OrderLog, error) {
	var rows []models.OrderLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus applies the transition only when the current status still
// matches, guarding against concurrent staff actions.
func (r *repositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) AppendLog(ctx context.Context, log *models.OrderLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repositoryImpl) SetPaymentVerified(ctx context.Context, id uuid.UUID, verified bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_verified", verified)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) FindDueBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("deadline IS NOT NULL AND deadline BETWEEN ? AND ?", from, to).
		Where("status NOT IN ?", []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
