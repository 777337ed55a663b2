package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/api/middleware"
	"github.com/gatsis/gatsishub-backend/api/responses"
	"github.com/gatsis/gatsishub-backend/internal/changefeed"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

// Stream upgrades the request to a WebSocket and subscribes it to the
// change events the session is allowed to see. The scope set is derived
// from the session, never from the client.
func Stream(hub *changefeed.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change feed unavailable"))
			return
		}

		scopes, err := sessionScopes(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := hub.ServeWS(w, r, scopes); err != nil {
			// The upgrade writes its own error response; just record it.
			logg.Error(r.Context(), "websocket upgrade failed", err)
		}
	}
}

func sessionScopes(r *http.Request) ([]string, error) {
	actorID, err := requireActorID(r)
	if err != nil {
		return nil, err
	}

	switch middleware.ActorKindFromContext(r.Context()) {
	case string(enums.ActorKindCustomer):
		return []string{
			changefeed.CustomerScope(actorID),
			changefeed.ConversationScope(actorID),
		}, nil
	case string(enums.ActorKindStaff):
		role, err := enums.ParseEmployeeRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown staff role")
		}
		scopes := []string{changefeed.RoleScope(role)}
		if raw := middleware.TeamIDFromContext(r.Context()); raw != "" {
			teamID, err := uuid.Parse(raw)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid team id in session")
			}
			scopes = append(scopes, changefeed.TeamScope(teamID))
		}
		return scopes, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor kind")
	}
}
