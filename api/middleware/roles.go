package middleware

import (
	"net/http"

	"github.com/gatsis/gatsishub-backend/api/responses"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

// RequireCustomer allows only customer actors.
func RequireCustomer(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireKind(enums.ActorKindCustomer, logg)
}

// RequireStaff allows only staff actors, regardless of role.
func RequireStaff(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireKind(enums.ActorKindStaff, logg)
}

func requireKind(kind enums.ActorKind, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorKindFromContext(r.Context()) != string(kind) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "access restricted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaffRole allows only staff actors holding one of the given roles.
func RequireStaffRole(logg *logger.Logger, roles ...enums.EmployeeRole) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if ActorKindFromContext(ctx) != string(enums.ActorKindStaff) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "staff access required"))
				return
			}
			if _, ok := allowed[RoleFromContext(ctx)]; !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
