package slogx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestTransportLogsRequest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var inner *slog.Logger
	rt := Transport(logger)(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		inner = FromContext(r.Context())
		return &http.Response{StatusCode: http.StatusCreated, Body: http.NoBody}, nil
	}))

	req := httptest.NewRequest(http.MethodPost, "https://api.example.com/auth/verify-otp?otp=483920", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	req.Header.Set("Authorization", "Bearer secret")

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, inner)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	require.Equal(t, "http_client_request", entry["msg"])
	require.Equal(t, "POST", entry["method"])
	require.Equal(t, "api.example.com", entry["host"])
	require.Equal(t, "/auth/verify-otp", entry["path"])
	require.Equal(t, "req-1", entry["req_id"])
	require.EqualValues(t, 201, entry["status"])

	require.NotContains(t, buf.String(), "secret")
	require.NotContains(t, buf.String(), "483920")
}

func TestTransportLogsFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	rt := Transport(logger)(roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))

	_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://id.example.com/user", nil))
	require.Error(t, err)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "WARN", lines[0]["level"])
	require.Equal(t, "connection refused", lines[0]["error"])
}

func TestFromContextOr(t *testing.T) {
	t.Parallel()

	fallback := Discard()
	require.Same(t, fallback, FromContextOr(t.Context(), fallback))

	stored := Discard()
	ctx := WithContext(t.Context(), stored)
	require.Same(t, stored, FromContextOr(ctx, fallback))
	require.NotNil(t, FromContextOr(t.Context(), nil))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}
