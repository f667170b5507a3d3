package otpflow

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the login flow by the stage that produced it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindSessionIssuanceFailed: the authority did not mint a verification session.
	KindSessionIssuanceFailed
	// KindMissingContext: no phone or session id was available when required.
	KindMissingContext
	// KindVerificationFailed: the authority rejected the code (wrong, expired).
	KindVerificationFailed
	// KindMalformedResponse: a success status arrived without required fields.
	KindMalformedResponse
	// KindNetworkError: the exchange never produced a response.
	KindNetworkError
	// KindSessionEstablishFailed: the code was valid but the identity
	// provider refused the tokens.
	KindSessionEstablishFailed
)

func (k Kind) String() string {
	switch k {
	case KindSessionIssuanceFailed:
		return "session_issuance_failed"
	case KindMissingContext:
		return "missing_context"
	case KindVerificationFailed:
		return "verification_failed"
	case KindMalformedResponse:
		return "malformed_response"
	case KindNetworkError:
		return "network_error"
	case KindSessionEstablishFailed:
		return "session_establish_failed"
	default:
		return "unknown"
	}
}

// AuthError is the only error type surfaced to users of the flow. Message is
// safe to show to the end user; Err keeps the underlying cause for logs.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches on Kind so the package sentinels work with errors.Is regardless
// of message or cause.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrSessionIssuanceFailed  = &AuthError{Kind: KindSessionIssuanceFailed}
	ErrMissingContext         = &AuthError{Kind: KindMissingContext}
	ErrVerificationFailed     = &AuthError{Kind: KindVerificationFailed}
	ErrMalformedResponse      = &AuthError{Kind: KindMalformedResponse}
	ErrNetworkError           = &AuthError{Kind: KindNetworkError}
	ErrSessionEstablishFailed = &AuthError{Kind: KindSessionEstablishFailed}
)

// Flow control errors. These describe misuse of the state machine, not a
// failure of the login itself, and never change the flow's state.
var (
	ErrBusy              = errors.New("otpflow: a request is already in flight")
	ErrResendUnavailable = errors.New("otpflow: resend is not available yet")
	ErrInvalidState      = errors.New("otpflow: operation not allowed in current state")
)

// ServerError is implemented by Authority errors that carry an answer from
// the remote side. Errors that do not implement it are treated as transport
// failures.
type ServerError interface {
	error
	StatusCode() int
	ServerMessage() string
}

// KindOf reports the Kind of err, or KindUnknown if err is not an AuthError.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// UserMessage returns the text to show for err.
func UserMessage(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newError(kind Kind, msg string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: msg, Err: cause}
}

// asServerError extracts a remote answer from err, if any.
func asServerError(err error) (ServerError, bool) {
	var se ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}
