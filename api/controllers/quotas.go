package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/api/middleware"
	"github.com/gatsis/gatsishub-backend/api/responses"
	"github.com/gatsis/gatsishub-backend/api/validators"
	"github.com/gatsis/gatsishub-backend/internal/quotas"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

type quotaOrderAssignment struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
	Units   int    `json:"units" validate:"required,gt=0"`
}

type createQuotaRequest struct {
	TeamID      string                 `json:"teamId" validate:"required,uuid"`
	TargetUnits int                    `json:"targetUnits" validate:"required,gt=0"`
	StartsAt    time.Time              `json:"startsAt" validate:"required"`
	EndsAt      time.Time              `json:"endsAt" validate:"required"`
	Orders      []quotaOrderAssignment `json:"orders"`
}

type createSubmissionRequest struct {
	QuotaID  string  `json:"quotaId" validate:"required,uuid"`
	OrderID  *string `json:"orderId"`
	Units    int     `json:"reportedUnits" validate:"required,gt=0"`
	Note     *string `json:"note"`
	Priority *string `json:"priority"`
}

type rejectSubmissionRequest struct {
	RejectReason string `json:"rejectReason" validate:"required"`
}

func quotaActor(r *http.Request) (quotas.Actor, error) {
	id, err := requireActorID(r)
	if err != nil {
		return quotas.Actor{}, err
	}
	role, err := enums.ParseEmployeeRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return quotas.Actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown staff role")
	}
	actor := quotas.Actor{ID: id, Role: role}
	if raw := middleware.TeamIDFromContext(r.Context()); raw != "" {
		teamID, err := uuid.Parse(raw)
		if err != nil {
			return quotas.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid team id in session")
		}
		actor.TeamID = &teamID
	}
	return actor, nil
}

// ListQuotas returns quotas with their order assignments and progress,
// optionally filtered by status and team.
func ListQuotas(svc quotas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotas service unavailable"))
			return
		}

		var status *enums.QuotaStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseQuotaStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		var teamID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("teamId")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid teamId filter"))
				return
			}
			teamID = &parsed
		}

		rows, err := svc.ListQuotas(r.Context(), status, teamID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuotaResponses(rows))
	}
}

func QuotaDetail(svc quotas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotas service unavailable"))
			return
		}

		quotaID, err := parseUUIDParam(r, "quotaID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quota, err := svc.GetQuota(r.Context(), quotaID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuotaResponse(quota))
	}
}

func CreateQuota(svc quotas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotas service unavailable"))
			return
		}

		actor, err := quotaActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createQuotaRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		teamID, err := uuid.Parse(body.TeamID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid team id"))
			return
		}

		assignments := make([]quotas.OrderAssignment, 0, len(body.Orders))
		for _, row := range body.Orders {
			orderID, err := uuid.Parse(row.OrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id in assignments"))
				return
			}
			assignments = append(assignments, quotas.OrderAssignment{OrderID: orderID, Units: row.Units})
		}

		quota, err := svc.CreateQuota(r.Context(), quotas.CreateQuotaInput{
			Actor:       actor,
			TeamID:      teamID,
			TargetUnits: body.TargetUnits,
			StartsAt:    body.StartsAt,
			EndsAt:      body.EndsAt,
			Orders:      assignments,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newQuotaResponse(quota))
	}
}

func CloseQuota(svc quotas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotas service unavailable"))
			return
		}

		actor, err := quotaActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quotaID, err := parseUUIDParam(r, "quotaID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CloseQuota(r.Context(), actor, quotaID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "closed"})
	}
}

// CreateSubmission records a worker's reported units against a quota.
// It never touches the quota's finished count; verification does that.
func CreateSubmission(svc quotas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotas service unavailable"))
			return
		}

		actor, err := quotaActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createSubmissionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quotaID, err := uuid.Parse(body.QuotaID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quota id"))
			return
		}
		var orderID *uuid.UUID
		if body.OrderID != nil && strings.TrimSpace(*body.OrderID) != "" {
			parsed, err := uuid.Parse(*body.OrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
				return
			}
			orderID = &parsed
		}

		submission, err := svc.Submit(r.Context(), quotas.SubmitInput{
			Actor:    actor,
			QuotaID:  quotaID,
			OrderID:  orderID,
			Units:    body.Units,
			Note:     body.Note,
			Priority: body.Priority,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSubmissionResponse(submission))
	}
}

func ListSubmissions(svc quotas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotas service unavailable"))
			return
		}

		var status *enums.SubmissionStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseSubmissionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		var quotaID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("quotaId")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quotaId filter"))
				return
			}
			quotaID = &parsed
		}

		rows, err := svc.ListSubmissions(r.Context(), status, quotaID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubmissionResponses(rows))
	}
}

func VerifySubmission(svc quotas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotas service unavailable"))
			return
		}

		actor, err := quotaActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		submissionID, err := parseUUIDParam(r, "submissionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		submission, err := svc.Verify(r.Context(), quotas.ReviewInput{
			Actor:        actor,
			SubmissionID: submissionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubmissionResponse(submission))
	}
}

func RejectSubmission(svc quotas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotas service unavailable"))
			return
		}

		actor, err := quotaActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		submissionID, err := parseUUIDParam(r, "submissionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rejectSubmissionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		submission, err := svc.Reject(r.Context(), quotas.ReviewInput{
			Actor:        actor,
			SubmissionID: submissionID,
			RejectReason: &body.RejectReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubmissionResponse(submission))
	}
}
