package quotas

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies the staff member performing a quota operation.
type Actor struct {
	ID     uuid.UUID
	Role   enums.EmployeeRole
	TeamID *uuid.UUID
}

// OrderAssignment attaches one order's unit share to a quota.
type OrderAssignment struct {
	OrderID uuid.UUID
	Units   int
}

// CreateQuotaInput carries a new production target.
type CreateQuotaInput struct {
	Actor       Actor
	TeamID      uuid.UUID
	TargetUnits int
	StartsAt    time.Time
	EndsAt      time.Time
	Orders      []OrderAssignment
}

// SubmitInput is a worker's reported unit count.
type SubmitInput struct {
	Actor    Actor
	QuotaID  uuid.UUID
	OrderID  *uuid.UUID
	Units    int
	Note     *string
	Priority *string
}

// ReviewInput is a manager verdict on a pending submission.
type ReviewInput struct {
	Actor        Actor
	SubmissionID uuid.UUID
	RejectReason *string
}

// Service defines quota and submission operations.
type Service interface {
	ListQuotas(ctx context.Context, status *enums.QuotaStatus, teamID *uuid.UUID) ([]models.Quota, error)
	GetQuota(ctx context.Context, id uuid.UUID) (*models.Quota, error)
	CreateQuota(ctx context.Context, input CreateQuotaInput) (*models.Quota, error)
	CloseQuota(ctx context.Context, actor Actor, id uuid.UUID) error
	Submit(ctx context.Context, input SubmitInput) (*models.Submission, error)
	Verify(ctx context.Context, input ReviewInput) (*models.Submission, error)
	Reject(ctx context.Context, input ReviewInput) (*models.Submission, error)
	ListSubmissions(ctx context.Context, status *enums.SubmissionStatus, quotaID *uuid.UUID) ([]models.Submission, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService wires the quota dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "quota repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) ListQuotas(ctx context.Context, status *enums.QuotaStatus, teamID *uuid.UUID) ([]models.Quota, error) {
	rows, err := s.repo.ListQuotas(ctx, status, teamID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotas")
	}
	return rows, nil
}

func (s *service) GetQuota(ctx context.Context, id uuid.UUID) (*models.Quota, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quota id required")
	}
	quota, err := s.repo.FindQuotaByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quota not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quota")
	}
	return quota, nil
}

// CreateQuota opens a new target for a team with optional order assignments.
func (s *service) CreateQuota(ctx context.Context, input CreateQuotaInput) (*models.Quota, error) {
	if input.Actor.Role != enums.EmployeeRoleOperationalManager {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operational manager required")
	}
	if input.TeamID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "team id required")
	}
	if input.TargetUnits <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target units must be positive")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quota must end after it starts")
	}

	quota := &models.Quota{
		ID:          uuid.New(),
		TeamID:      input.TeamID,
		Status:      enums.QuotaStatusActive,
		TargetUnits: input.TargetUnits,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
	}
	seen := map[uuid.UUID]bool{}
	for _, assignment := range input.Orders {
		if assignment.OrderID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required in assignment")
		}
		if assignment.Units <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment units must be positive")
		}
		if seen[assignment.OrderID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order assigned twice")
		}
		seen[assignment.OrderID] = true
		quota.Orders = append(quota.Orders, models.QuotaOrder{
			QuotaID: quota.ID,
			OrderID: assignment.OrderID,
			Units:   assignment.Units,
		})
	}

	if err := s.repo.CreateQuota(ctx, quota); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quota")
	}
	return quota, nil
}

func (s *service) CloseQuota(ctx context.Context, actor Actor, id uuid.UUID) error {
	if actor.Role != enums.EmployeeRoleOperationalManager {
		return pkgerrors.New(pkgerrors.CodeForbidden, "operational manager required")
	}
	affected, err := s.repo.CloseQuota(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close quota")
	}
	if affected == 0 {
		if _, getErr := s.GetQuota(ctx, id); getErr != nil {
			return getErr
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "quota already closed")
	}
	return nil
}

// Submit records a worker's reported units as a pending submission. It never
// touches the quota's finished_units; that happens only on verification.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Submission, error) {
	if input.Units <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "units must be positive")
	}
	if input.QuotaID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quota id required")
	}

	quota, err := s.repo.FindQuotaByID(ctx, input.QuotaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quota not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quota")
	}
	if quota.Status != enums.QuotaStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quota is closed")
	}
	if input.Actor.TeamID == nil || *input.Actor.TeamID != quota.TeamID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "quota belongs to another team")
	}
	if input.OrderID != nil && !quotaHasOrder(quota, *input.OrderID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order not assigned to quota")
	}
	if input.Priority != nil && strings.TrimSpace(*input.Priority) == "" {
		input.Priority = nil
	}

	submission := &models.Submission{
		ID:         uuid.New(),
		QuotaID:    quota.ID,
		EmployeeID: input.Actor.ID,
		OrderID:    input.OrderID,
		Units:      input.Units,
		Note:       input.Note,
		Priority:   input.Priority,
		Status:     enums.SubmissionStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateSubmission(ctx, submission); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubmissionCreated,
			AggregateType: enums.AggregateSubmission,
			AggregateID:   submission.ID,
			Actor:         staffRef(input.Actor),
			Data: payloads.SubmissionCreatedEvent{
				SubmissionID: submission.ID,
				QuotaID:      quota.ID,
				TeamID:       quota.TeamID,
				EmployeeID:   submission.EmployeeID,
				Units:        submission.Units,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create submission")
	}
	return submission, nil
}

// Verify accepts a pending submission: the reviewer is stamped and the units
// are added to the quota's finished_units in the same transaction.
func (s *service) Verify(ctx context.Context, input ReviewInput) (*models.Submission, error) {
	return s.review(ctx, input, enums.SubmissionStatusVerified)
}

// Reject declines a pending submission without touching the quota total.
func (s *service) Reject(ctx context.Context, input ReviewInput) (*models.Submission, error) {
	if input.RejectReason == nil || strings.TrimSpace(*input.RejectReason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reject reason required")
	}
	return s.review(ctx, input, enums.SubmissionStatusRejected)
}

func (s *service) ListSubmissions(ctx context.Context, status *enums.SubmissionStatus, quotaID *uuid.UUID) ([]models.Submission, error) {
	rows, err := s.repo.ListSubmissions(ctx, status, quotaID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list submissions")
	}
	return rows, nil
}

func (s *service) review(ctx context.Context, input ReviewInput, verdict enums.SubmissionStatus) (*models.Submission, error) {
	if input.Actor.Role != enums.EmployeeRoleOperationalManager {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operational manager required")
	}
	if input.SubmissionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "submission id required")
	}

	submission, err := s.repo.FindSubmissionByID(ctx, input.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "submission not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load submission")
	}
	if submission.Status != enums.SubmissionStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "submission already reviewed")
	}

	teamID := uuid.Nil
	if submission.Quota != nil {
		teamID = submission.Quota.TeamID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, err := txRepo.ReviewSubmission(ctx, submission.ID, submissionReview{
			Status:       verdict,
			ReviewedBy:   input.Actor.ID,
			RejectReason: input.RejectReason,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "submission already reviewed")
		}
		if verdict == enums.SubmissionStatusVerified {
			if _, err := txRepo.AddFinishedUnits(ctx, submission.QuotaID, submission.Units); err != nil {
				return err
			}
		}
		reason := ""
		if input.RejectReason != nil {
			reason = *input.RejectReason
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubmissionReviewed,
			AggregateType: enums.AggregateSubmission,
			AggregateID:   submission.ID,
			Actor:         staffRef(input.Actor),
			Data: payloads.SubmissionReviewedEvent{
				SubmissionID: submission.ID,
				QuotaID:      submission.QuotaID,
				TeamID:       teamID,
				EmployeeID:   submission.EmployeeID,
				Units:        submission.Units,
				Status:       verdict,
				ReviewedBy:   input.Actor.ID,
				RejectReason: reason,
			},
			Version: 1,
		})
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "review submission")
	}

	submission.Status = verdict
	reviewer := input.Actor.ID
	submission.ReviewedBy = &reviewer
	now := time.Now().UTC()
	submission.ReviewedAt = &now
	submission.RejectReason = input.RejectReason
	return submission, nil
}

func quotaHasOrder(quota *models.Quota, orderID uuid.UUID) bool {
	for _, assignment := range quota.Orders {
		if assignment.OrderID == orderID {
			return true
		}
	}
	return false
}

func staffRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{
		ActorID:   actor.ID,
		ActorKind: string(enums.ActorKindStaff),
		Role:      string(actor.Role),
	}
}
