package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/pagination"
)

// Service defines notification list/read operations for customers.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, customerID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, customerID uuid.UUID) (int64, error)
	Delete(ctx context.Context, customerID, notificationID uuid.UUID) error
}

type service struct {
	repo Repository
}

// ListParams configures pagination for customer notifications.
type ListParams struct {
	CustomerID uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	query := listNotificationsParams{
		CustomerID: params.CustomerID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// MarkRead is idempotent: marking an already-read notification succeeds.
func (s *service) MarkRead(ctx context.Context, customerID, notificationID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, customerID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, customerID uuid.UUID) (int64, error) {
	if customerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	count, err := s.repo.MarkAllRead(ctx, customerID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) Delete(ctx context.Context, customerID, notificationID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	affected, err := s.repo.Delete(ctx, customerID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notification")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

// AdminService defines notification operations for staff, scoped by role.
type AdminService interface {
	List(ctx context.Context, params AdminListParams) (*AdminListResult, error)
	MarkRead(ctx context.Context, employeeID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, employeeID uuid.UUID, role enums.EmployeeRole) (int64, error)
	Delete(ctx context.Context, notificationID uuid.UUID) error
}

// AdminListParams configures pagination for staff notifications.
type AdminListParams struct {
	EmployeeID uuid.UUID
	Role       enums.EmployeeRole
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// AdminListResult wraps staff notifications with per-caller read state.
type AdminListResult struct {
	Items  []AdminNotificationRow `json:"items"`
	Cursor string                 `json:"cursor"`
}

type adminService struct {
	repo AdminRepository
}

// NewAdminService wires the staff notification dependencies.
func NewAdminService(repo AdminRepository) (AdminService, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "admin notifications repository required")
	}
	return &adminService{repo: repo}, nil
}

func (s *adminService) List(ctx context.Context, params AdminListParams) (*AdminListResult, error) {
	if params.EmployeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employee id required")
	}
	roles := targetRolesFor(params.Role)
	if len(roles) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role has no notification feed")
	}

	query := listAdminNotificationsParams{
		EmployeeID: params.EmployeeID,
		Roles:      roles,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list admin notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &AdminListResult{Items: rows, Cursor: cursor}, nil
}

// MarkRead is idempotent per employee: a second call finds the read mark and succeeds.
func (s *adminService) MarkRead(ctx context.Context, employeeID, notificationID uuid.UUID) error {
	if employeeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "employee id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, employeeID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark admin notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *adminService) MarkAllRead(ctx context.Context, employeeID uuid.UUID, role enums.EmployeeRole) (int64, error) {
	if employeeID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "employee id required")
	}
	roles := targetRolesFor(role)
	if len(roles) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeForbidden, "role has no notification feed")
	}

	count, err := s.repo.MarkAllRead(ctx, employeeID, roles, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark admin notifications read")
	}
	return count, nil
}

func (s *adminService) Delete(ctx context.Context, notificationID uuid.UUID) error {
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	affected, err := s.repo.Delete(ctx, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete admin notification")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

// targetRolesFor lists the target_role values visible to an employee role.
// Rows targeted at "both" are visible to both admin roles.
func targetRolesFor(role enums.EmployeeRole) []enums.AdminTargetRole {
	switch role {
	case enums.EmployeeRoleSalesAdmin:
		return []enums.AdminTargetRole{enums.AdminTargetSalesAdmin, enums.AdminTargetBoth}
	case enums.EmployeeRoleOperationalManager:
		return []enums.AdminTargetRole{enums.AdminTargetOperationalManager, enums.AdminTargetBoth}
	default:
		return nil
	}
}
