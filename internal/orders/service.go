package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgdb "github.com/gatsis/gatsishub-backend/pkg/db"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/payloads"
	"github.com/gatsis/gatsishub-backend/pkg/pagination"
)

const uniqueOrderNumberConstraint = "ux_orders_order_number"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type materialFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error)
}

// Actor identifies who performs an order operation; it comes from the
// session, never from the request body.
type Actor struct {
	ID   uuid.UUID
	Kind enums.ActorKind
	Role string
}

// ListParams selects a page of orders.
type ListParams struct {
	Actor  Actor
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ListResult is one page of orders plus the cursor for the next page.
type ListResult struct {
	Items  []models.Order
	Cursor string
}

// CreateInput carries a new order request.
type CreateInput struct {
	Actor          Actor
	CustomerID     uuid.UUID
	MaterialID     uuid.UUID
	Quantity       int
	Deadline       *time.Time
	LogoURL        *string
	Specifications *string
}

// ChangeStatusInput carries a staff-driven status transition.
type ChangeStatusInput struct {
	Actor   Actor
	OrderID uuid.UUID
	To      enums.OrderStatus
	Note    *string
}

// Service defines order operations for customers and staff.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	Logs(ctx context.Context, actor Actor, id uuid.UUID) ([]models.OrderLog, error)
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	ChangeStatus(ctx context.Context, input ChangeStatusInput) (*models.Order, error)
	VerifyPayment(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	TeamOrders(ctx context.Context, teamID uuid.UUID) ([]models.Order, error)
}

type service struct {
	repo      Repository
	materials materialFinder
	tx        txRunner
	outbox    outboxPublisher
}

// NewService wires the order dependencies.
func NewService(repo Repository, materials materialFinder, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if materials == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materials finder required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{repo: repo, materials: materials, tx: tx, outbox: outboxSvc}, nil
}

// List returns staff the full order book and customers only their own rows.
func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listOrdersParams{Limit: params.Limit}
	query.Filters.Status = params.Status
	if params.Actor.Kind == enums.ActorKindCustomer {
		customerID := params.Actor.ID
		query.Filters.CustomerID = &customerID
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	return s.loadVisible(ctx, actor, id)
}

func (s *service) Logs(ctx context.Context, actor Actor, id uuid.UUID) ([]models.OrderLog, error) {
	if _, err := s.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	logs, err := s.repo.Logs(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order logs")
	}
	return logs, nil
}

// Create places a new order in pending status. Customers order for
// themselves; staff may order on a customer's behalf.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	customerID := input.CustomerID
	if input.Actor.Kind == enums.ActorKindCustomer {
		customerID = input.Actor.ID
	}
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.MaterialID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Deadline != nil && input.Deadline.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deadline must be in the future")
	}

	material, err := s.materials.FindByID(ctx, input.MaterialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}
	if !material.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material is not available")
	}

	total := material.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity)))
	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    newOrderNumber(),
		CustomerID:     customerID,
		MaterialID:     material.ID,
		Status:         enums.OrderStatusPending,
		Quantity:       input.Quantity,
		UnitPrice:      material.UnitPrice,
		TotalAmount:    total,
		LogoURL:        input.LogoURL,
		Specifications: input.Specifications,
		Deadline:       input.Deadline,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				MaterialID:  order.MaterialID,
				Quantity:    order.Quantity,
				TotalAmount: order.TotalAmount.StringFixed(2),
			},
			Version: 1,
		})
	})
	if err != nil {
		if pkgdb.IsUniqueViolation(err, uniqueOrderNumberConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number collision, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	order.Material = material
	return order, nil
}

// ChangeStatus applies one staff-driven transition, appending the audit log
// row and emitting the domain event in the same transaction.
func (s *service) ChangeStatus(ctx context.Context, input ChangeStatusInput) (*models.Order, error) {
	if input.Actor.Kind != enums.ActorKindStaff {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff access required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	from := order.Status
	if !from.CanTransitionTo(input.To) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", from, input.To))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, err := txRepo.UpdateStatus(ctx, order.ID, from, input.To)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		fromCopy := from
		if err := txRepo.AppendLog(ctx, &models.OrderLog{
			OrderID:    order.ID,
			FromStatus: &fromCopy,
			ToStatus:   input.To,
			ActorKind:  input.Actor.Kind,
			ActorID:    input.Actor.ID,
			Note:       input.Note,
		}); err != nil {
			return err
		}
		note := ""
		if input.Note != nil {
			note = *input.Note
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				FromStatus:  &fromCopy,
				ToStatus:    input.To,
				Note:        note,
			},
			Version: 1,
		})
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "change order status")
	}

	order.Status = input.To
	return order, nil
}

// VerifyPayment records a manually confirmed bank transfer. When the order
// is waiting in verifying_payment it also advances to in_production.
func (s *service) VerifyPayment(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	if actor.Kind != enums.ActorKindStaff {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff access required")
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentVerified {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already verified")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.SetPaymentVerified(ctx, order.ID, true); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusVerifyingPayment {
			return nil
		}
		from := order.Status
		affected, err := txRepo.UpdateStatus(ctx, order.ID, from, enums.OrderStatusInProduction)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		note := "payment verified"
		if err := txRepo.AppendLog(ctx, &models.OrderLog{
			OrderID:    order.ID,
			FromStatus: &from,
			ToStatus:   enums.OrderStatusInProduction,
			ActorKind:  actor.Kind,
			ActorID:    actor.ID,
			Note:       &note,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				FromStatus:  &from,
				ToStatus:    enums.OrderStatusInProduction,
				Note:        note,
			},
			Version: 1,
		})
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment")
	}

	order.PaymentVerified = true
	if order.Status == enums.OrderStatusVerifyingPayment {
		order.Status = enums.OrderStatusInProduction
	}
	return order, nil
}

// TeamOrders lists orders routed to a production or assembly team through
// its active quotas.
func (s *service) TeamOrders(ctx context.Context, teamID uuid.UUID) ([]models.Order, error) {
	if teamID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "team id required")
	}
	rows, err := s.repo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list team orders")
	}
	return rows, nil
}

func (s *service) loadVisible(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if actor.Kind == enums.ActorKindCustomer && order.CustomerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{
		ActorID:   actor.ID,
		ActorKind: string(actor.Kind),
		Role:      actor.Role,
	}
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("GH-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
