package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"career-advisor-platform/internal/domain/model"
)

// ===== Bearer JWT primitives =====

// Claims are the identity provider's assertions about the caller. The
// subject is the application user id.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
	issuer string
}

func NewAuthManager(secret, issuer string) *AuthManager {
	return &AuthManager{secret: []byte(secret), issuer: issuer}
}

// Mint signs a token for p. Used by tests and local tooling; production
// tokens come from the identity provider.
func (a *AuthManager) Mint(p *model.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: p.Email,
		Roles: p.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

var errMissingToken = errors.New("missing token")

func (a *AuthManager) ParseFromRequest(r *http.Request) (*model.Principal, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*model.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return &model.Principal{UserID: claims.Subject, Email: claims.Email, Roles: claims.Roles}, nil
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalKey{}).(*model.Principal)
	return p
}
