package auth

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/gatsis/gatsishub-backend/pkg/config"
)

// GoogleIdentity is the subset of a verified Google ID token auth cares about.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier validates a Google ID token and extracts the identity.
type GoogleVerifier interface {
	Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error)
}

type googleVerifier struct {
	audience string
}

// NewGoogleVerifier builds a verifier pinned to the configured OAuth client.
func NewGoogleVerifier(cfg config.GoogleConfig) (GoogleVerifier, error) {
	if strings.TrimSpace(cfg.OAuthClientID) == "" {
		return nil, fmt.Errorf("google oauth client id is required")
	}
	return &googleVerifier{audience: cfg.OAuthClientID}, nil
}

func (g *googleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, rawToken, g.audience)
	if err != nil {
		return nil, err
	}

	identity := &GoogleIdentity{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		identity.Email = strings.ToLower(email)
	}
	if name, ok := payload.Claims["name"].(string); ok {
		identity.Name = name
	}
	if identity.Subject == "" || identity.Email == "" {
		return nil, fmt.Errorf("google token missing subject or email")
	}
	return identity, nil
}
