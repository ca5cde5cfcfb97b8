package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "hiring-auth"

type claimsKey struct{}

func withClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// Subject returns the token subject stored by the interceptor or the
// middleware, or "" for unauthenticated calls.
func Subject(ctx context.Context) string {
	claims, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// bearerToken strips the Bearer scheme from an authorization value.
func bearerToken(value string) (string, error) {
	if value == "" {
		return "", errors.New("authorization header required")
	}
	token, ok := strings.CutPrefix(value, "Bearer ")
	if !ok {
		return "", errors.New("invalid authorization format: missing Bearer prefix")
	}
	if token == "" {
		return "", errors.New("invalid authorization format: empty token")
	}
	return token, nil
}

// validateToken accepts HS256 tokens signed with secret and returns their
// claims.
func validateToken(tokenString, secret string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

func GenerateToken(subject, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": issuerName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Issuer exchanges the shared team password for a signed token.
type Issuer struct {
	secret   string
	password string
	ttl      time.Duration
}

func NewIssuer(secret, password string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, password: password, ttl: ttl}
}

// Issue returns a token for subject when password matches the shared one.
func (i *Issuer) Issue(subject, password string) (string, error) {
	if i.password == "" || i.secret == "" {
		return "", fmt.Errorf("%w: no shared password configured", e.ErrMisconfigured)
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(i.password)) != 1 {
		return "", fmt.Errorf("%w: wrong password", e.ErrUnauthenticated)
	}
	if subject == "" {
		subject = "hiring-team"
	}
	return GenerateToken(subject, i.secret, i.ttl)
}
