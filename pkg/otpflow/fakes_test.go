package otpflow

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// statusError is a remote answer with a status and optional message.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string         { return http.StatusText(e.status) }
func (e *statusError) StatusCode() int       { return e.status }
func (e *statusError) ServerMessage() string { return e.msg }

var errConnRefused = errors.New("dial tcp: connection refused")

type fakeAuthority struct {
	mu sync.Mutex

	sessions []IssuedSession // handed out in order; the last one repeats
	issueErr error
	tokens   TokenPair
	codes    map[string]string // session id -> accepted code
	verifyFn func(sessionID, code string) (TokenPair, error)

	requests []string
	verifies [][2]string
}

func (a *fakeAuthority) RequestSession(_ context.Context, phone string) (IssuedSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, phone)
	if a.issueErr != nil {
		return IssuedSession{}, a.issueErr
	}
	if len(a.sessions) == 0 {
		return IssuedSession{}, nil
	}
	s := a.sessions[0]
	if len(a.sessions) > 1 {
		a.sessions = a.sessions[1:]
	}
	return s, nil
}

func (a *fakeAuthority) VerifyCode(_ context.Context, sessionID, code string) (TokenPair, error) {
	a.mu.Lock()
	a.verifies = append(a.verifies, [2]string{sessionID, code})
	fn := a.verifyFn
	a.mu.Unlock()

	if fn != nil {
		return fn(sessionID, code)
	}
	if want, ok := a.codes[sessionID]; !ok || want != code {
		return TokenPair{}, &statusError{status: http.StatusBadRequest, msg: "Invalid code"}
	}
	return a.tokens, nil
}

func (a *fakeAuthority) requestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *fakeAuthority) verifyCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.verifies)
}

type fakeProvider struct {
	mu sync.Mutex

	setErr     error
	userErr    error
	updateErr  error
	refreshErr error
	user       User

	installed TokenPair
	patches   []Metadata
	refreshes int
}

func (p *fakeProvider) SetSession(_ context.Context, tokens TokenPair) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setErr != nil {
		return p.setErr
	}
	p.installed = tokens
	return nil
}

func (p *fakeProvider) CurrentUser(context.Context) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.userErr != nil {
		return User{}, p.userErr
	}
	return p.user, nil
}

func (p *fakeProvider) UpdateUserMetadata(_ context.Context, patch Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patches = append(p.patches, patch)
	return p.updateErr
}

func (p *fakeProvider) RefreshSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	return p.refreshErr
}
