package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/platinummonkey/integrationhub/pkg/rbac"
)

// ErrNoCredentials is returned when a request carries no identity
var ErrNoCredentials = errors.New("no credentials presented")

// IdentitySource resolves the identity behind a request that opens a session
type IdentitySource interface {
	Identify(r *http.Request) (Identity, error)
}

// DevSource is the development identity source. It always returns the configured identity.
type DevSource struct {
	identity Identity
}

// DevIdentity is the identity used when no other source is configured
func DevIdentity() Identity {
	return Identity{
		ID:          "dev-admin",
		Email:       "admin@integrationhub.local",
		Name:        "Dev Admin",
		Roles:       []rbac.Role{rbac.RoleSystemAdministrator},
		CompanyID:   "company-platform",
		CompanyName: "Integration Hub",
	}
}

// NewDevSource creates a development identity source. A zero identity uses DevIdentity.
func NewDevSource(identity Identity) *DevSource {
	if identity.ID == "" {
		identity = DevIdentity()
	}
	return &DevSource{identity: identity}
}

// Identify returns the configured identity
func (d *DevSource) Identify(r *http.Request) (Identity, error) {
	return d.identity.clone(), nil
}

// TokenVerifier verifies raw ID tokens. *oidc.IDTokenVerifier satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Claims is the ID token claim set mapped onto an Identity
type Claims struct {
	Subject     string   `json:"sub"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"hub_roles"`
	Teams       []string `json:"teams"`
	CompanyID   string   `json:"company_id"`
	CompanyName string   `json:"company_name"`
}

// TokenSource builds identities from bearer ID tokens
type TokenSource struct {
	verifier TokenVerifier
}

// NewTokenSource creates a token-backed identity source
func NewTokenSource(verifier TokenVerifier) *TokenSource {
	return &TokenSource{verifier: verifier}
}

// NewOIDCSource discovers the issuer and returns a token source verifying its ID tokens
func NewOIDCSource(ctx context.Context, issuerURL, clientID string) (*TokenSource, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer: %w", err)
	}
	return NewTokenSource(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// Identify verifies the bearer token and maps its claims. Unknown role claims are dropped.
func (s *TokenSource) Identify(r *http.Request) (Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return Identity{}, ErrNoCredentials
	}

	token, err := s.verifier.Verify(r.Context(), raw)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims Claims
	if err := token.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("failed to parse ID token claims: %w", err)
	}

	identity := Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		Name:        claims.Name,
		Teams:       claims.Teams,
		CompanyID:   claims.CompanyID,
		CompanyName: claims.CompanyName,
	}
	for _, raw := range claims.Roles {
		if role, ok := rbac.ConsoleCatalog().Parse(raw); ok {
			identity.Roles = append(identity.Roles, role)
		}
	}
	return identity, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// StartingRole picks the role a new session opens with: the identity's first
// console role, or the fallback.
func StartingRole(identity Identity, fallback rbac.Role) rbac.Role {
	for _, r := range identity.Roles {
		if rbac.ConsoleCatalog().Contains(r) {
			return r
		}
	}
	return fallback
}
