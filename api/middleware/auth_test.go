package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gatsis/gatsishub-backend/pkg/auth"
	"github.com/gatsis/gatsishub-backend/pkg/auth/session"
	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

type seededActor struct {
	actor string
	kind  string
	role  string
	team  string
}

// protect wraps a handler that records what Auth seeded into the
// request context.
func protect(cfg config.JWTConfig, sessions session.AccessSessionChecker, seen *seededActor) http.Handler {
	return Auth(cfg, sessions, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen.actor = ActorIDFromContext(r.Context())
			seen.kind = ActorKindFromContext(r.Context())
			seen.role = RoleFromContext(r.Context())
			seen.team = TeamIDFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func serve(handler http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		req.Header.Set(header, value)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestAuthRejectsMissingToken(t *testing.T) {
	cfg := testJWTConfig(10)
	resp := serve(protect(cfg, liveSessions{ok: true}, nil), "", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	cfg := testJWTConfig(10)
	resp := serve(protect(cfg, liveSessions{ok: true}, nil), "Authorization", "Bearer invalid")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthAllowsStaffToken(t *testing.T) {
	cfg := testJWTConfig(60)
	teamID := uuid.New()
	role := enums.EmployeeRoleProduction
	token := mintTestToken(t, cfg, auth.AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: enums.ActorKindStaff,
		Role:      &role,
		TeamID:    &teamID,
		JTI:       session.NewAccessID(),
	})

	var seen seededActor
	resp := serve(protect(cfg, liveSessions{ok: true}, &seen), "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, seen.actor)
	require.Equal(t, string(enums.ActorKindStaff), seen.kind)
	require.Equal(t, string(enums.EmployeeRoleProduction), seen.role)
	require.Equal(t, teamID.String(), seen.team)
}

func TestAuthAllowsCustomerToken(t *testing.T) {
	cfg := testJWTConfig(60)
	token := mintTestToken(t, cfg, auth.AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: enums.ActorKindCustomer,
		JTI:       session.NewAccessID(),
	})

	var seen seededActor
	resp := serve(protect(cfg, liveSessions{ok: true}, &seen), accessTokenHeader, token)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, seen.actor)
	require.Equal(t, string(enums.ActorKindCustomer), seen.kind)
	require.Empty(t, seen.role)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	cfg := testJWTConfig(60)
	token := mintTestToken(t, cfg, auth.AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: enums.ActorKindCustomer,
		JTI:       session.NewAccessID(),
	})

	resp := serve(protect(cfg, liveSessions{ok: false}, nil), accessTokenHeader, token)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func testJWTConfig(expirationMinutes int) config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: expirationMinutes}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, payload auth.AccessTokenPayload) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), payload)
	require.NoError(t, err)
	return token
}

type liveSessions struct {
	ok  bool
	err error
}

func (s liveSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}
