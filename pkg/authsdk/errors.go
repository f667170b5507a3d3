package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoSession is returned when an operation needs a session and none is
// installed or cached.
var ErrNoSession = errors.New("authsdk: no session")

// APIError is a non-success answer from either remote party.
type APIError struct {
	// Status is the HTTP status code of the response
	Status int

	// Code is a machine-readable error code, when the server sent one
	Code string

	// Message is the human-readable message sent by the server, if any
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
}

// StatusCode returns the HTTP status of the response.
func (e *APIError) StatusCode() int { return e.Status }

// ServerMessage returns the message sent by the server, or "".
func (e *APIError) ServerMessage() string { return e.Message }

// DecodeError reports a success response whose body could not be decoded.
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode HTTP %d response: %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the undecodable response.
func (e *DecodeError) StatusCode() int { return e.Status }

// ServerMessage is always empty; the body could not be read.
func (e *DecodeError) ServerMessage() string { return "" }

// IsUnauthorized reports whether err is a 401 from either party.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// parseErrorResponse converts a non-success response into an *APIError,
// picking the most descriptive message field present.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, msg := range []string{errResp.Message, errResp.Msg, errResp.ErrorDescription} {
			if msg = strings.TrimSpace(msg); msg != "" {
				apiErr.Message = msg
				break
			}
		}
		apiErr.Code = errResp.ErrorCode
		if apiErr.Code == "" {
			apiErr.Code = errResp.Error
		}
	}

	return apiErr
}
