package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gatsis/gatsishub-backend/api/responses"
	"github.com/gatsis/gatsishub-backend/api/validators"
	"github.com/gatsis/gatsishub-backend/internal/materials"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

type createMaterialRequest struct {
	Name         string   `json:"name" validate:"required"`
	Description  *string  `json:"description"`
	Features     []string `json:"features"`
	UnitPrice    string   `json:"unitPrice" validate:"required"`
	ImageURL     *string  `json:"imageUrl"`
	DisplayOrder int      `json:"displayOrder"`
}

type updateMaterialRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Features     []string `json:"features"`
	UnitPrice    *string  `json:"unitPrice"`
	ImageURL     *string  `json:"imageUrl"`
	IsActive     *bool    `json:"isActive"`
	DisplayOrder *int     `json:"displayOrder"`
}

// ListMaterials returns the catalog, optionally filtered by the isActive flag.
func ListMaterials(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materials service unavailable"))
			return
		}

		var isActive *bool
		if raw := strings.TrimSpace(r.URL.Query().Get("isActive")); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid isActive filter"))
				return
			}
			isActive = &parsed
		}

		rows, err := svc.List(r.Context(), isActive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMaterialResponses(rows))
	}
}

func CreateMaterial(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materials service unavailable"))
			return
		}

		var body createMaterialRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := decimal.NewFromString(strings.TrimSpace(body.UnitPrice))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit price"))
			return
		}

		material, err := svc.Create(r.Context(), materials.CreateInput{
			Name:         body.Name,
			Description:  body.Description,
			Features:     body.Features,
			UnitPrice:    price,
			ImageURL:     body.ImageURL,
			DisplayOrder: body.DisplayOrder,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newMaterialResponse(material))
	}
}

func UpdateMaterial(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materials service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "materialID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateMaterialRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := materials.UpdateInput{
			Name:         body.Name,
			Description:  body.Description,
			Features:     body.Features,
			ImageURL:     body.ImageURL,
			IsActive:     body.IsActive,
			DisplayOrder: body.DisplayOrder,
		}
		if body.UnitPrice != nil {
			price, err := decimal.NewFromString(strings.TrimSpace(*body.UnitPrice))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit price"))
				return
			}
			input.UnitPrice = &price
		}

		material, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMaterialResponse(material))
	}
}

func DeleteMaterial(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materials service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "materialID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
