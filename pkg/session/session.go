// Package session carries the authenticated actor through a request.
// Identity is issued elsewhere; this package only verifies HS256 tokens and
// exposes the actor to handlers and services.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ridebook/pkg/models"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Session is the acting user for one call. City is the city the user has
// selected, which may differ from the one in their profile.
type Session struct {
	UserID string
	Name   string
	Role   models.Role
	City   string
}

func (s Session) IsAdmin() bool    { return s.Role == models.RoleAdmin }
func (s Session) IsProvider() bool { return s.Role == models.RoleProvider }
func (s Session) Valid() bool      { return s.UserID != "" && s.Role != "" }

type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	City string `json:"city"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	issuer string
}

func NewManager(secret, issuer string) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for s. Used by tooling and tests; production tokens
// come from the identity provider sharing the secret.
func (m *Manager) Issue(s Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: s.Name,
		Role: string(s.Role),
		City: s.City,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) Parse(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	s := Session{
		UserID: claims.Subject,
		Name:   claims.Name,
		Role:   models.Role(claims.Role),
		City:   claims.City,
	}
	switch s.Role {
	case models.RoleCustomer, models.RoleProvider, models.RoleAdmin:
	default:
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, claims.Role)
	}
	if s.UserID == "" {
		return Session{}, fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}
	return s, nil
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.Valid()
}
