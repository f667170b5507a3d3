//go:build e2e

package login_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medportal/phoneauth/internal/login/app"
)

/*
 * Helpers for the login end-to-end tests. A WireMock container plays both
 * the login authority (/auth/...) and the identity provider (/auth/v1/...).
 */

const (
	wiremockImage = "wiremock/wiremock:3.9.1"

	apiKey    = "anon-key"
	testPhone = "+998901234567"
	validCode = "123456"
	sessionID = "sess-e2e"
)

type wiremock struct {
	baseURL string
}

// setupWireMock starts WireMock and returns a handle to its admin API.
func setupWireMock(t *testing.T) (*wiremock, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        wiremockImage,
		ExposedPorts: []string{"8080/tcp"},
		WaitingFor: wait.ForHTTP("/__admin/mappings").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	wm := &wiremock{baseURL: fmt.Sprintf("http://%s:%s", host, mappedPort.Port())}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return wm, cleanup
}

func (wm *wiremock) admin(t *testing.T, path string, body any) []byte {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(wm.baseURL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Less(t, resp.StatusCode, 300, "wiremock admin %s: %s", path, out)
	return out
}

// stub registers one mapping.
func (wm *wiremock) stub(t *testing.T, mapping map[string]any) {
	t.Helper()
	wm.admin(t, "/__admin/mappings", mapping)
}

// count reports how many received requests match pattern.
func (wm *wiremock) count(t *testing.T, pattern map[string]any) int {
	t.Helper()

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(wm.admin(t, "/__admin/requests/count", pattern), &out))
	return out.Count
}

func jsonResponse(status int, body any) map[string]any {
	return map[string]any{
		"status":   status,
		"headers":  map[string]string{"Content-Type": "application/json"},
		"jsonBody": body,
	}
}

func signToken(t *testing.T, jti string) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-e2e",
		"exp": time.Now().Add(time.Hour).Unix(),
		"jti": jti,
	}).SignedString([]byte("e2e-secret"))
	require.NoError(t, err)
	return raw
}

// stubBackend registers the happy-path authority and identity provider.
func (wm *wiremock) stubBackend(t *testing.T) {
	t.Helper()

	wm.stub(t, map[string]any{
		"request": map[string]any{"method": "POST", "url": "/auth/phone"},
		"response": jsonResponse(http.StatusOK, map[string]any{
			"session_id":   sessionID,
			"telegram_url": "https://t.me/medportal_bot?start=" + sessionID,
		}),
	})

	wm.stub(t, map[string]any{
		"priority": 1,
		"request": map[string]any{
			"method": "POST",
			"url":    "/auth/verify-otp",
			"bodyPatterns": []map[string]any{
				{"matchesJsonPath": fmt.Sprintf("$[?(@.session_id == '%s' && @.otp == '%s')]", sessionID, validCode)},
			},
		},
		"response": jsonResponse(http.StatusOK, map[string]any{
			"access_token":  signToken(t, "verify"),
			"refresh_token": "refresh-verify",
		}),
	})
	wm.stub(t, map[string]any{
		"priority": 5,
		"request":  map[string]any{"method": "POST", "url": "/auth/verify-otp"},
		"response": jsonResponse(http.StatusBadRequest, map[string]any{"message": "Invalid code"}),
	})

	user := map[string]any{
		"id":            "user-e2e",
		"phone":         testPhone,
		"user_metadata": map[string]any{},
		"raw_user_meta_data": map[string]any{
			"first_name": "Aziz",
			"last_name":  "Karimov",
		},
	}
	wm.stub(t, map[string]any{
		"request":  map[string]any{"method": "GET", "url": "/auth/v1/user"},
		"response": jsonResponse(http.StatusOK, user),
	})
	wm.stub(t, map[string]any{
		"request":  map[string]any{"method": "PUT", "url": "/auth/v1/user"},
		"response": jsonResponse(http.StatusOK, user),
	})
	wm.stub(t, map[string]any{
		"request": map[string]any{"method": "POST", "url": "/auth/v1/token?grant_type=refresh_token"},
		"response": jsonResponse(http.StatusOK, map[string]any{
			"access_token":  signToken(t, "refresh"),
			"refresh_token": "refresh-rotated",
			"token_type":    "bearer",
			"expires_in":    3600,
		}),
	})
	wm.stub(t, map[string]any{
		"request":  map[string]any{"method": "POST", "url": "/auth/v1/logout"},
		"response": map[string]any{"status": http.StatusNoContent},
	})
}

// newApplication points a fresh application with an on-disk cache at wm.
// Applications given the same cachePath share sessions and the journal.
func newApplication(t *testing.T, wm *wiremock, cachePath string) *app.Application {
	t.Helper()

	cfg := app.Config{
		AuthorityURL: wm.baseURL,
		IdentityURL:  wm.baseURL + "/auth/v1",
		APIKey:       apiKey,
		Cache: app.CacheConfig{
			Path:       cachePath,
			Passphrase: "e2e passphrase",
		},
	}
	require.NoError(t, app.Normalize(&cfg))

	application, err := app.New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	return application
}
