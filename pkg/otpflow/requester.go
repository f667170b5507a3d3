package otpflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const genericIssuanceMessage = "could not start phone verification, please try again"

// Requester asks the authority for verification sessions and remembers the
// phone number so a resend can reuse it.
type Requester struct {
	Authority Authority

	// Timer is re-armed to Window after every successful issuance. Optional.
	Timer *ResendTimer

	// Window is the validity of an issued session. Defaults to DefaultWindow.
	Window time.Duration

	// Now is the clock used to stamp sessions. Defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	phone   string
	current VerificationSession
	// issued holds every session id handed out so far; none may come back.
	issued map[string]struct{}
}

// Request mints a new session for phone. The caller is responsible for
// normalizing the number.
func (r *Requester) Request(ctx context.Context, phone string) (VerificationSession, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return VerificationSession{}, newError(KindMissingContext, "phone number is required", nil)
	}
	return r.issue(ctx, phone)
}

// Resend mints a new session for the phone of the last successful or
// attempted request. The previous session id is discarded.
func (r *Requester) Resend(ctx context.Context) (VerificationSession, error) {
	r.mu.Lock()
	phone := r.phone
	r.mu.Unlock()

	if phone == "" {
		return VerificationSession{}, newError(KindMissingContext, "phone number is no longer known, start over", nil)
	}
	return r.issue(ctx, phone)
}

// Current returns the most recently issued session.
func (r *Requester) Current() VerificationSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Discard forgets the current session so it can no longer be verified.
func (r *Requester) Discard() {
	r.mu.Lock()
	r.current = VerificationSession{}
	r.mu.Unlock()
}

func (r *Requester) issue(ctx context.Context, phone string) (VerificationSession, error) {
	r.mu.Lock()
	r.phone = phone
	r.mu.Unlock()

	issued, err := r.Authority.RequestSession(ctx, phone)
	if err != nil {
		return VerificationSession{}, issuanceError(err)
	}
	if issued.SessionID == "" || issued.DeepLink == "" {
		return VerificationSession{}, newError(
			KindSessionIssuanceFailed,
			genericIssuanceMessage,
			errors.New("authority response is missing session_id or telegram_url"),
		)
	}

	r.mu.Lock()
	_, reused := r.issued[issued.SessionID]
	r.mu.Unlock()
	if reused {
		return VerificationSession{}, newError(
			KindSessionIssuanceFailed,
			genericIssuanceMessage,
			fmt.Errorf("authority reissued session id %q", issued.SessionID),
		)
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	window := r.Window
	if window <= 0 {
		window = DefaultWindow
	}

	created := now()
	session := VerificationSession{
		ID:        issued.SessionID,
		DeepLink:  issued.DeepLink,
		Phone:     phone,
		CreatedAt: created,
		ExpiresAt: created.Add(window),
	}

	r.mu.Lock()
	if r.issued == nil {
		r.issued = make(map[string]struct{})
	}
	r.issued[session.ID] = struct{}{}
	r.current = session
	r.mu.Unlock()

	if r.Timer != nil {
		r.Timer.Reset(window)
	}
	return session, nil
}

func issuanceError(err error) error {
	se, ok := asServerError(err)
	switch {
	case !ok:
		return newError(KindSessionIssuanceFailed, "network error: could not reach the login service", err)
	case se.ServerMessage() != "":
		return newError(KindSessionIssuanceFailed, se.ServerMessage(), err)
	default:
		return newError(KindSessionIssuanceFailed, genericIssuanceMessage, err)
	}
}
