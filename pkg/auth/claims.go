package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ActorID   uuid.UUID
	ActorKind enums.ActorKind
	Role      *enums.EmployeeRole
	TeamID    *uuid.UUID
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients. Role and
// TeamID are only present for staff actors.
type AccessTokenClaims struct {
	ActorID   uuid.UUID           `json:"actor_id"`
	ActorKind enums.ActorKind     `json:"actor_kind"`
	Role      *enums.EmployeeRole `json:"role,omitempty"`
	TeamID    *uuid.UUID          `json:"team_id,omitempty"`
	jwt.RegisteredClaims
}
