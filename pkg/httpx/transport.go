package httpx

import (
	"net/http"

	"github.com/medportal/phoneauth/pkg/idx"
	"github.com/medportal/phoneauth/pkg/slogx"
)

// Middleware decorates an outbound http.RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain wraps base with mws. The first middleware is the outermost, so it
// sees the request first.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

// RequestID sets an X-Request-ID header on requests that don't carry one.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get(slogx.RequestIDHeader) == "" {
				// RoundTrippers must not modify the caller's request.
				r = r.Clone(r.Context())
				r.Header.Set(slogx.RequestIDHeader, idx.New().String())
			}
			return next.RoundTrip(r)
		})
	}
}

// Header sets a fixed header on every request, e.g. a public API key.
func Header(key, value string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if value == "" || r.Header.Get(key) != "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set(key, value)
			return next.RoundTrip(r)
		})
	}
}
