package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// GetUser fetches the user the access token belongs to.
func (c *SDKClient) GetUser(ctx context.Context, accessToken string) (*UserResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.IdentityURL+"/user", nil, c.identityHeaders(accessToken))
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser merges data into the user's metadata and returns the updated
// record.
func (c *SDKClient) UpdateUser(ctx context.Context, accessToken string, data map[string]any) (*UserResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, c.IdentityURL+"/user",
		UpdateUserRequest{Data: data}, c.identityHeaders(accessToken))
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshGrant exchanges a refresh token for a new token pair. The old
// refresh token is spent.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	resp, err := c.doRequest(ctx, http.MethodPost, c.IdentityURL+"/token?grant_type=refresh_token",
		refreshTokenRequest{RefreshToken: refreshToken}, c.identityHeaders(""))
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" || tokenResp.RefreshToken == "" {
		return nil, &DecodeError{Status: resp.StatusCode, Err: fmt.Errorf("token response is missing tokens")}
	}
	return &tokenResp, nil
}

// Logout revokes the provider-side session of accessToken.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, c.IdentityURL+"/logout", nil, c.identityHeaders(accessToken))
	if err != nil {
		return err
	}
	return checkStatus(resp)
}
