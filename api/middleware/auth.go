package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gatsis/gatsishub-backend/api/responses"
	pkgAuth "github.com/gatsis/gatsishub-backend/pkg/auth"
	"github.com/gatsis/gatsishub-backend/pkg/auth/session"
	"github.com/gatsis/gatsishub-backend/pkg/config"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

const accessTokenHeader = "X-GH-Token"

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(accessTokenHeader))
			if token == "" {
				raw := strings.TrimSpace(r.Header.Get("Authorization"))
				if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
					token = strings.TrimSpace(raw[7:])
				} else {
					token = raw
				}
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxActorID, claims.ActorID.String())
			ctx = context.WithValue(ctx, ctxActorKind, string(claims.ActorKind))
			ctx = context.WithValue(ctx, ctxAccessID, claims.ID)
			if claims.Role != nil {
				ctx = context.WithValue(ctx, ctxRole, string(*claims.Role))
			}
			if claims.TeamID != nil {
				ctx = context.WithValue(ctx, ctxTeamID, claims.TeamID.String())
			}

			if logg != nil {
				ctx = logg.WithActorID(ctx, claims.ActorID.String())
				ctx = logg.WithActorKind(ctx, string(claims.ActorKind))
				if claims.Role != nil {
					ctx = logg.WithActorRole(ctx, string(*claims.Role))
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
