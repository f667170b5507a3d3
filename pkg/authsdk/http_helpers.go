package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// doRequest performs an HTTP request with the SDKClient's HTTP client. A
// non-nil body is encoded as JSON.
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, url string,
	body any,
	headers map[string]string,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// authorityHeaders are sent with every call to the login authority.
func (c *SDKClient) authorityHeaders() map[string]string {
	if c.APIKey == "" {
		return nil
	}
	return map[string]string{
		"apikey":        c.APIKey,
		"Authorization": "Bearer " + c.APIKey,
	}
}

// identityHeaders are sent with every call to the identity provider. An empty
// accessToken leaves the Authorization header to the API key.
func (c *SDKClient) identityHeaders(accessToken string) map[string]string {
	headers := map[string]string{}
	if c.APIKey != "" {
		headers["apikey"] = c.APIKey
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	if accessToken != "" {
		headers["Authorization"] = "Bearer " + accessToken
	}
	return headers
}

// decodeJSON decodes a 2xx response into target. Non-2xx responses become an
// *APIError; an undecodable 2xx body becomes a *DecodeError.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseErrorResponse(resp, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return &DecodeError{Status: resp.StatusCode, Err: err}
	}

	return nil
}

// checkStatus returns an *APIError if the response is not 2xx and discards
// the body.
func checkStatus(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return parseErrorResponse(resp, bodyBytes)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
