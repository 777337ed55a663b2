package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/api/middleware"
	"github.com/gatsis/gatsishub-backend/api/responses"
	"github.com/gatsis/gatsishub-backend/api/validators"
	"github.com/gatsis/gatsishub-backend/internal/auth"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

const accessTokenHeader = "X-GH-Token"

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyLoginCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type signupRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	CompanyName string  `json:"companyName" validate:"required"`
	ContactName string  `json:"contactName" validate:"required"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	TaxID       *string `json:"taxId"`
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type sessionResponse struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
	ActorID      string  `json:"actorId"`
	ActorKind    string  `json:"actorKind"`
	Role         *string `json:"role,omitempty"`
	TeamID       *string `json:"teamId,omitempty"`
}

type loginResponse struct {
	RequiresVerification bool             `json:"requiresVerification"`
	Session              *sessionResponse `json:"session,omitempty"`
}

func newSessionResponse(session *auth.Session) *sessionResponse {
	if session == nil {
		return nil
	}
	resp := &sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ActorID:      session.ActorID.String(),
		ActorKind:    string(session.ActorKind),
	}
	if session.Role != nil {
		role := string(*session.Role)
		resp.Role = &role
	}
	if session.TeamID != nil {
		teamID := session.TeamID.String()
		resp.TeamID = &teamID
	}
	return resp
}

func writeSession(w http.ResponseWriter, session *auth.Session) {
	resp := newSessionResponse(session)
	w.Header().Set(accessTokenHeader, resp.AccessToken)
	responses.WriteSuccess(w, resp)
}

// AuthLogin resolves the account kind server-side; customers with the
// second factor enabled get a verification prompt instead of tokens.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.RequiresVerification {
			responses.WriteSuccess(w, loginResponse{RequiresVerification: true})
			return
		}
		resp := newSessionResponse(result.Session)
		w.Header().Set(accessTokenHeader, resp.AccessToken)
		responses.WriteSuccess(w, loginResponse{Session: resp})
	}
}

func AuthVerifyLoginCode(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body verifyLoginCodeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.VerifyLoginCode(r.Context(), body.Email, body.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, session)
	}
}

func AuthGoogle(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body googleLoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Google(r.Context(), body.IDToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, session)
	}
}

func AuthSignup(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body signupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Signup(r.Context(), auth.SignupInput{
			Email:       body.Email,
			Password:    body.Password,
			CompanyName: body.CompanyName,
			ContactName: body.ContactName,
			Phone:       body.Phone,
			Address:     body.Address,
			TaxID:       body.TaxID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := newSessionResponse(session)
		w.Header().Set(accessTokenHeader, resp.AccessToken)
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Refresh(r.Context(), body.AccessToken, body.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, session)
	}
}

func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
			return
		}

		if err := svc.Logout(r.Context(), accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

func AuthChangePassword(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		customerID, err := requireCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body changePasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ChangePassword(r.Context(), customerID, body.CurrentPassword, body.NewPassword); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "password_changed"})
	}
}

func AuthDeleteAccount(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		customerID, err := requireCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accessID := middleware.AccessIDFromContext(r.Context())
		if err := svc.DeleteAccount(r.Context(), customerID, accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "account_deactivated"})
	}
}

func requireCustomerID(r *http.Request) (uuid.UUID, error) {
	if middleware.ActorKindFromContext(r.Context()) != string(enums.ActorKindCustomer) {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "customer session required")
	}
	return requireActorID(r)
}

func requireActorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ActorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing from session")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return id, nil
}
