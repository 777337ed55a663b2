package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "gatsishub",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseStaffToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	actorID := uuid.New()
	teamID := uuid.New()
	role := enums.EmployeeRoleProduction

	payload := AccessTokenPayload{
		ActorID:   actorID,
		ActorKind: enums.ActorKindStaff,
		Role:      &role,
		TeamID:    &teamID,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.ActorID != actorID {
		t.Fatalf("expected actor_id %s, got %s", actorID, claims.ActorID)
	}
	if claims.ActorKind != enums.ActorKindStaff {
		t.Fatalf("unexpected actor kind %s", claims.ActorKind)
	}
	if claims.Role == nil || *claims.Role != role {
		t.Fatalf("role not preserved")
	}
	if claims.TeamID == nil || *claims.TeamID != teamID {
		t.Fatalf("team id not preserved")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestMintCustomerToken(t *testing.T) {
	cfg := testJWTConfig()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: enums.ActorKindCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != nil {
		t.Fatalf("customer claims must not carry a role")
	}
}

func TestMintStaffTokenRequiresRole(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: enums.ActorKindStaff,
	})
	if err == nil {
		t.Fatal("expected error for staff token without role")
	}
}

func TestMintCustomerTokenRejectsRole(t *testing.T) {
	role := enums.EmployeeRoleSalesAdmin
	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: enums.ActorKindCustomer,
		Role:      &role,
	})
	if err == nil {
		t.Fatal("expected error for customer token with role")
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: enums.ActorKindCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ExpirationMinutes = 15
	now := time.Now().Add(-time.Hour)

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: enums.ActorKindCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expiry error")
	}

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	if err != nil {
		t.Fatalf("allow-expired parse should succeed: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("expected jti in expired claims")
	}
}
