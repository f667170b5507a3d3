package otpflow

import (
	"context"
	"time"
)

// DefaultWindow is how long an issued session stays valid and how long the
// resend action stays disabled after each issuance.
const DefaultWindow = 120 * time.Second

// IssuedSession is what the authority returns when it mints a session.
type IssuedSession struct {
	SessionID string
	DeepLink  string
}

// VerificationSession is a single OTP attempt chain bound to a bot deep link.
// A resend produces a new VerificationSession; sessions are never mutated.
type VerificationSession struct {
	ID        string
	DeepLink  string
	Phone     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsZero reports whether no session has been issued.
func (s VerificationSession) IsZero() bool { return s.ID == "" }

// TokenPair is the credential pair minted by a successful code exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both tokens are present.
func (t TokenPair) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// Authority is the remote side that issues verification sessions and
// exchanges codes for tokens.
//
// Implementations return a ServerError when the remote side answered with a
// status, and any other error for transport failures.
type Authority interface {
	RequestSession(ctx context.Context, phone string) (IssuedSession, error)
	VerifyCode(ctx context.Context, sessionID, code string) (TokenPair, error)
}
