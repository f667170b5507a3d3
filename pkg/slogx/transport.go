package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestIDHeader carries the correlation id of an outbound request.
const RequestIDHeader = "X-Request-ID"

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Transport logs every outbound request made through next and attaches the
// request-scoped logger to the request context. Only the method, host and
// path are logged; headers and bodies carry credentials and are never logged.
func Transport(base *slog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if next == nil {
			next = http.DefaultTransport
		}
		return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			logger := FromContextOr(r.Context(), base).With(
				"method", r.Method,
				"host", r.URL.Host,
				"path", r.URL.Path,
			)
			if reqID := r.Header.Get(RequestIDHeader); reqID != "" {
				logger = logger.With("req_id", reqID)
			}
			r = r.WithContext(WithContext(r.Context(), logger))

			resp, err := next.RoundTrip(r)
			duration := time.Since(start).Milliseconds()
			if err != nil {
				logger.Warn("http_client_request",
					"error", err,
					"duration_ms", duration,
				)
				return nil, err
			}

			logger.Info("http_client_request",
				"status", resp.StatusCode,
				"duration_ms", duration,
			)
			return resp, nil
		})
	}
}
