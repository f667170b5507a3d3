package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the two remote parties of a phone login: the login
// authority that issues verification sessions, and the identity provider
// that owns the resulting user session.
type SDKClient struct {
	// BaseURL of the login authority, e.g. "https://api.example.com".
	BaseURL string

	// IdentityURL of the GoTrue-compatible identity provider, e.g.
	// "https://project.example.com/auth/v1".
	IdentityURL string

	// APIKey is the public (anon) key sent to both parties. Optional.
	APIKey string

	HTTPClient *http.Client

	// Now is the clock used for token expiry decisions. Defaults to time.Now.
	Now func() time.Time
}

// NewSDKClient creates a client with a 10 second request timeout.
func NewSDKClient(baseURL, identityURL string) *SDKClient {
	return &SDKClient{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		IdentityURL: strings.TrimSuffix(identityURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SDKClient) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
