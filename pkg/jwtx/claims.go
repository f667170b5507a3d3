package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Claims are the access-token claims issued by the identity provider. Only
// the registered claims are decoded; the client acts on exp and nbf alone.
type Claims struct {
	jwt.RegisteredClaims
}

// Inspect decodes the claims of raw WITHOUT verifying its signature. The
// client holds no verification key; it only needs the claims to schedule
// refreshes. Never use the result for an authorization decision.
func Inspect(raw string) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

// Expiry returns the exp claim, or the zero time when the token has none.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ValidateExpiryAt checks exp and nbf against now, allowing leeway for clock
// skew in both directions.
func (c *Claims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
