package otpflow

import (
	"context"
	"errors"
)

const genericVerificationMessage = "the code could not be verified"

// Verifier exchanges a completed code for a token pair.
type Verifier struct {
	Authority Authority
}

// Verify performs exactly one exchange with the authority. Nothing is retried;
// every failure is final for this code.
func (v *Verifier) Verify(ctx context.Context, sessionID, code string) (TokenPair, error) {
	if sessionID == "" {
		return TokenPair{}, newError(KindMissingContext, "verification session is missing, request a new code", nil)
	}
	if !isCode(code) {
		return TokenPair{}, newError(KindVerificationFailed, "enter all 6 digits of the code", nil)
	}

	tokens, err := v.Authority.VerifyCode(ctx, sessionID, code)
	if err != nil {
		return TokenPair{}, verificationError(err)
	}
	if !tokens.Complete() {
		return TokenPair{}, newError(
			KindMalformedResponse,
			"the login service returned an incomplete answer",
			errors.New("verify response is missing access_token or refresh_token"),
		)
	}
	return tokens, nil
}

func verificationError(err error) error {
	se, ok := asServerError(err)
	if !ok {
		return newError(KindNetworkError, "network error: could not reach the login service", err)
	}
	if isSuccessStatus(se.StatusCode()) {
		// The body of a success response could not be used.
		return newError(KindMalformedResponse, "the login service returned an unreadable answer", err)
	}
	if msg := se.ServerMessage(); msg != "" {
		return newError(KindVerificationFailed, msg, err)
	}
	return newError(KindVerificationFailed, genericVerificationMessage, err)
}
