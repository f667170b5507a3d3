package domain

import "time"

// Outcome is how a login attempt, or one step of it, ended.
type Outcome string

const (
	OutcomeAuthenticated Outcome = "authenticated"
	OutcomeFailed        Outcome = "failed"
	OutcomeAbandoned     Outcome = "abandoned"
)

// Attempt is one entry of the local login journal. Codes and tokens are
// never recorded.
type Attempt struct {
	ID        string
	Profile   string
	Phone     string
	SessionID string // verification session, empty if none was issued
	Outcome   Outcome
	ErrorKind string // otpflow kind name for failed steps
	At        time.Time
}
