package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/riaaa16/ai-consultant/internal/config"
	"github.com/riaaa16/ai-consultant/pkg/middleware"
)

// Verifier checks bearer tokens against an OIDC provider.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers issuer and verifies tokens issued for clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// Issuer returns the Keycloak issuer URL for cfg. Without a realm the URL is
// assumed to already include the realm path.
func Issuer(cfg config.KeycloakConfig) string {
	if cfg.Realm == "" {
		return cfg.URL
	}
	return strings.TrimRight(cfg.URL, "/") + "/realms/" + cfg.Realm
}

// NewKeycloakVerifier builds a verifier from Keycloak settings.
func NewKeycloakVerifier(ctx context.Context, cfg config.KeycloakConfig) (*Verifier, error) {
	if cfg.URL == "" || cfg.ClientID == "" {
		return nil, errors.New("keycloak url and client id are required")
	}
	return NewVerifier(ctx, Issuer(cfg), cfg.ClientID)
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
