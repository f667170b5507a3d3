package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medportal/phoneauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestInspect(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("decodes registered claims", func(t *testing.T) {
		raw := signHS256(t, jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		})

		claims, err := jwtx.Inspect(raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.True(t, exp.Equal(claims.Expiry()))
	})

	t.Run("does not need the signing key", func(t *testing.T) {
		// Signed with a key we never see; inspection must still work
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).
			SignedString([]byte("someone-elses-secret"))
		require.NoError(t, err)

		claims, err := jwtx.Inspect(raw)
		require.NoError(t, err)
		require.Equal(t, "x", claims.Subject)
		require.True(t, claims.Expiry().IsZero())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := jwtx.Inspect("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestValidateExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	t.Run("valid token", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(1 * time.Minute)),
			},
		}
		require.NoError(t, claims.ValidateExpiryAt(now, 0))
	})

	t.Run("expired token", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			},
		}
		require.ErrorIs(t, claims.ValidateExpiryAt(now, 0), jwtx.ErrExpired)
	})

	t.Run("not yet valid", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				NotBefore: jwt.NewNumericDate(now.Add(1 * time.Minute)),
			},
		}
		require.ErrorIs(t, claims.ValidateExpiryAt(now, 0), jwtx.ErrNotYetValid)
	})

	t.Run("leeway absorbs skew", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second)),
			},
		}
		require.NoError(t, claims.ValidateExpiryAt(now, 30*time.Second))
		require.ErrorIs(t, claims.ValidateExpiryAt(now, 5*time.Second), jwtx.ErrExpired)
	})
}
