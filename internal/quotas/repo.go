package quotas

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// Repository exposes persistence helpers for quotas and submissions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateQuota(ctx context.Context, quota *models.Quota) error
	FindQuotaByID(ctx context.Context, id uuid.UUID) (*models.Quota, error)
	ListQuotas(ctx context.Context, status *enums.QuotaStatus, teamID *uuid.UUID) ([]models.Quota, error)
	CloseQuota(ctx context.Context, id uuid.UUID) (int64, error)
	AddFinishedUnits(ctx context.Context, quotaID uuid.UUID, units int) (int64, error)

	CreateSubmission(ctx context.Context, submission *models.Submission) error
	FindSubmissionByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ListSubmissions(ctx context.Context, status *enums.SubmissionStatus, quotaID *uuid.UUID) ([]models.Submission, error)
	ReviewSubmission(ctx context.Context, id uuid.UUID, review submissionReview) (int64, error)
}

type submissionReview struct {
	Status       enums.SubmissionStatus
	ReviewedBy   uuid.UUID
	RejectReason *string
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a quota repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateQuota(ctx context.Context, quota *models.Quota) error {
	return r.db.WithContext(ctx).Create(quota).Error
}

func (r *repositoryImpl) FindQuotaByID(ctx context.Context, id uuid.UUID) (*models.Quota, error) {
	var quota models.Quota
	err := r.db.WithContext(ctx).
		Preload("Team").
		Preload("Orders").
		First(&quota, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &quota, nil
}

func (r *repositoryImpl) ListQuotas(ctx context.Context, status *enums.QuotaStatus, teamID *uuid.UUID) ([]models.Quota, error) {
	query := r.db.WithContext(ctx).
		Preload("Team").
		Preload("Orders")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if teamID != nil {
		query = query.Where("team_id = ?", *teamID)
	}

	var rows []models.Quota
	if err := query.Order("starts_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) CloseQuota(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quota{}).
		Where("id = ? AND status = ?", id, enums.QuotaStatusActive).
		Update("status", enums.QuotaStatusClosed)
	return result.RowsAffected, result.Error
}

// AddFinishedUnits increments the running total atomically in SQL so two
// concurrent verifications cannot lose an update.
func (r *repositoryImpl) AddFinishedUnits(ctx context.Context, quotaID uuid.UUID, units int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quota{}).
		Where("id = ?", quotaID).
		Update("finished_units", gorm.Expr("finished_units + ?", units))
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *repositoryImpl) FindSubmissionByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Quota").
		First(&submission, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *repositoryImpl) ListSubmissions(ctx context.Context, status *enums.SubmissionStatus, quotaID *uuid.UUID) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Preload("Quota")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if quotaID != nil {
		query = query.Where("quota_id = ?", *quotaID)
	}

	var rows []models.Submission
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ReviewSubmission stamps the verdict only while the row is still pending.
func (r *repositoryImpl) ReviewSubmission(ctx context.Context, id uuid.UUID, review submissionReview) (int64, error) {
	updates := map[string]any{
		"status":      review.Status,
		"reviewed_by": review.ReviewedBy,
		"reviewed_at": gorm.Expr("CURRENT_TIMESTAMP"),
	}
	if review.RejectReason != nil {
		updates["reject_reason"] = *review.RejectReason
	}
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, enums.SubmissionStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}
