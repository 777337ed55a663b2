package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/pagination"
)

type stubNotificationsRepo struct {
	rows        []models.Notification
	markResult  notificationMarkResult
	markCalls   int
	markAllRows int64
	deleted     int64
}

func (s *stubNotificationsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubNotificationsRepo) Create(ctx context.Context, notification *models.Notification) error {
	s.rows = append(s.rows, *notification)
	return nil
}

func (s *stubNotificationsRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	return s.rows, nil, nil
}

func (s *stubNotificationsRepo) MarkRead(ctx context.Context, customerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	s.markCalls++
	return s.markResult, nil
}

func (s *stubNotificationsRepo) MarkAllRead(ctx context.Context, customerID uuid.UUID, now time.Time) (int64, error) {
	return s.markAllRows, nil
}

func (s *stubNotificationsRepo) Delete(ctx context.Context, customerID, notificationID uuid.UUID) (int64, error) {
	return s.deleted, nil
}

func (s *stubNotificationsRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestMarkReadIdempotent(t *testing.T) {
	repo := &stubNotificationsRepo{markResult: notificationMarkResult{Found: true, Updated: false}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	customerID := uuid.New()
	notificationID := uuid.New()
	for i := 0; i < 2; i++ {
		if err := svc.MarkRead(context.Background(), customerID, notificationID); err != nil {
			t.Fatalf("mark read call %d: %v", i+1, err)
		}
	}
	if repo.markCalls != 2 {
		t.Fatalf("expected repo called twice, got %d", repo.markCalls)
	}
}

func TestMarkReadUnknownNotification(t *testing.T) {
	repo := &stubNotificationsRepo{markResult: notificationMarkResult{Found: false}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	svc, err := NewService(&stubNotificationsRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.List(context.Background(), ListParams{CustomerID: uuid.New(), Cursor: "not-base64!!"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteUnknownNotification(t *testing.T) {
	svc, err := NewService(&stubNotificationsRepo{deleted: 0})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Delete(context.Background(), uuid.New(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

type stubAdminRepo struct {
	rows       []AdminNotificationRow
	listParams listAdminNotificationsParams
	markResult notificationMarkResult
	markedAll  []enums.AdminTargetRole
}

func (s *stubAdminRepo) WithTx(tx *gorm.DB) AdminRepository { return s }

func (s *stubAdminRepo) Create(ctx context.Context, notification *models.AdminNotification) error {
	return nil
}

func (s *stubAdminRepo) List(ctx context.Context, params listAdminNotificationsParams) ([]AdminNotificationRow, *pagination.Cursor, error) {
	s.listParams = params
	return s.rows, nil, nil
}

func (s *stubAdminRepo) MarkRead(ctx context.Context, employeeID, notificationID uuid.UUID) (notificationMarkResult, error) {
	return s.markResult, nil
}

func (s *stubAdminRepo) MarkAllRead(ctx context.Context, employeeID uuid.UUID, roles []enums.AdminTargetRole, now time.Time) (int64, error) {
	s.markedAll = roles
	return int64(len(roles)), nil
}

func (s *stubAdminRepo) Delete(ctx context.Context, notificationID uuid.UUID) (int64, error) {
	return 1, nil
}

func (s *stubAdminRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestAdminListScopesRolesIncludingBoth(t *testing.T) {
	repo := &stubAdminRepo{}
	svc, err := NewAdminService(repo)
	if err != nil {
		t.Fatalf("new admin service: %v", err)
	}

	_, err = svc.List(context.Background(), AdminListParams{
		EmployeeID: uuid.New(),
		Role:       enums.EmployeeRoleSalesAdmin,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(repo.listParams.Roles) != 2 {
		t.Fatalf("expected two visible target roles, got %v", repo.listParams.Roles)
	}
	seen := map[enums.AdminTargetRole]bool{}
	for _, role := range repo.listParams.Roles {
		seen[role] = true
	}
	if !seen[enums.AdminTargetSalesAdmin] || !seen[enums.AdminTargetBoth] {
		t.Fatalf("expected sales_admin and both, got %v", repo.listParams.Roles)
	}
}

func TestAdminListRejectsWorkerRoles(t *testing.T) {
	svc, err := NewAdminService(&stubAdminRepo{})
	if err != nil {
		t.Fatalf("new admin service: %v", err)
	}

	_, err = svc.List(context.Background(), AdminListParams{
		EmployeeID: uuid.New(),
		Role:       enums.EmployeeRoleProduction,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAdminMarkReadIdempotent(t *testing.T) {
	repo := &stubAdminRepo{markResult: notificationMarkResult{Found: true, Updated: false}}
	svc, err := NewAdminService(repo)
	if err != nil {
		t.Fatalf("new admin service: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
			t.Fatalf("mark read call %d: %v", i+1, err)
		}
	}
}
