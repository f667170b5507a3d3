package otpflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medportal/phoneauth/pkg/slogx"
)

// State is a named stage of the login flow.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateAwaitingCode
	StateVerifying
	StateEstablishing
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRequesting:
		return "REQUESTING"
	case StateAwaitingCode:
		return "AWAITING_CODE"
	case StateVerifying:
		return "VERIFYING"
	case StateEstablishing:
		return "ESTABLISHING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a consistent view of the flow for rendering.
type Snapshot struct {
	State     State
	Session   VerificationSession
	Slots     [CodeLength]string
	Focus     int
	ResendIn  time.Duration
	CanResend bool
	// Err is the failure that caused the last transition, if any.
	Err error
	// User is set once the flow is authenticated and the user could be fetched.
	User User
}

// Config wires a Flow.
type Config struct {
	Authority Authority
	Provider  IdentityProvider

	// Window is the session validity and resend delay. Defaults to DefaultWindow.
	Window time.Duration
	// TickInterval drives the resend countdown. Defaults to one second.
	TickInterval time.Duration
	// Now stamps issued sessions. Defaults to time.Now.
	Now func() time.Time

	// OnChange is called after every transition and countdown tick. It must
	// not call back into the Flow's mutating methods.
	OnChange func(Snapshot)

	// OnResendAvailable is called from the countdown goroutine each time the
	// countdown of an awaited session reaches zero. The same restriction as
	// OnChange applies.
	OnResendAvailable func()
}

// Flow drives a single phone login from phone entry to an authenticated
// session. Network calls are made synchronously on the caller's goroutine and
// at most one is outstanding at a time; the resend countdown runs on its own
// goroutine between Start and Close.
type Flow struct {
	requester   *Requester
	verifier    *Verifier
	establisher *Establisher
	timer       *ResendTimer
	code        *CodeInput
	onChange    func(Snapshot)

	mu       sync.Mutex
	state    State
	inflight bool
	err      error
	user     User
	pending  string
}

// New builds a Flow in StateIdle.
func New(cfg Config) *Flow {
	f := &Flow{onChange: cfg.OnChange}

	f.timer = NewResendTimer()
	if cfg.TickInterval > 0 {
		f.timer.Interval = cfg.TickInterval
	}
	f.timer.OnTick = func(time.Duration) { f.notify() }
	if cfg.OnResendAvailable != nil {
		f.timer.OnAvailable = func() {
			if f.State() == StateAwaitingCode {
				cfg.OnResendAvailable()
			}
		}
	}

	f.code = NewCodeInput(func(code string) {
		f.mu.Lock()
		f.pending = code
		f.mu.Unlock()
	})

	f.requester = &Requester{
		Authority: cfg.Authority,
		Timer:     f.timer,
		Window:    cfg.Window,
		Now:       cfg.Now,
	}
	f.verifier = &Verifier{Authority: cfg.Authority}
	f.establisher = &Establisher{Provider: cfg.Provider}
	return f
}

// Start begins the resend countdown ticker.
func (f *Flow) Start() { f.timer.Start() }

// Close stops the countdown and clears the entered code. The flow must not
// be used afterwards.
func (f *Flow) Close() {
	f.timer.Stop()
	f.code.Clear()
}

// Submit requests the first verification session for phone.
func (f *Flow) Submit(ctx context.Context, phone string) error {
	if err := f.begin(ctx, StateRequesting, nil, StateIdle); err != nil {
		return err
	}

	if _, err := f.requester.Request(ctx, phone); err != nil {
		f.finish(ctx, StateIdle, err)
		return err
	}

	f.code.Clear()
	f.finish(ctx, StateAwaitingCode, nil)
	return nil
}

// Resend requests a new session for the same phone once the countdown has
// elapsed. It is also accepted from StateIdle, where it fails with
// MissingContext if no phone is known.
func (f *Flow) Resend(ctx context.Context) error {
	countdownElapsed := func() error {
		if f.state == StateAwaitingCode && !f.timer.CanResend() {
			return ErrResendUnavailable
		}
		return nil
	}
	if err := f.begin(ctx, StateRequesting, countdownElapsed, StateIdle, StateAwaitingCode); err != nil {
		return err
	}

	if _, err := f.requester.Resend(ctx); err != nil {
		f.finish(ctx, StateIdle, err)
		return err
	}

	f.code.Clear()
	f.finish(ctx, StateAwaitingCode, nil)
	return nil
}

// SetDigit writes one slot of the code. Completing the code runs
// verification before returning.
func (f *Flow) SetDigit(ctx context.Context, i int, s string) error {
	if err := f.acceptInput(); err != nil {
		return err
	}
	f.code.SetDigit(i, s)
	return f.verifyPending(ctx)
}

// Paste fills the code from pasted text. Completing the code runs
// verification before returning.
func (f *Flow) Paste(ctx context.Context, raw string) error {
	if err := f.acceptInput(); err != nil {
		return err
	}
	f.code.Paste(raw)
	return f.verifyPending(ctx)
}

// Backspace clears slot i or moves focus back from an empty slot.
func (f *Flow) Backspace(i int) error {
	if err := f.acceptInput(); err != nil {
		return err
	}
	f.code.Backspace(i)
	f.notify()
	return nil
}

// ClearCode empties every slot, e.g. before the user retypes a rejected code.
func (f *Flow) ClearCode() error {
	if err := f.acceptInput(); err != nil {
		return err
	}
	f.code.Clear()
	f.notify()
	return nil
}

// Snapshot returns the current view of the flow.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Snapshot{
		State:     f.state,
		Session:   f.requester.Current(),
		Slots:     f.code.Slots(),
		Focus:     f.code.Focus(),
		ResendIn:  f.timer.Remaining(),
		CanResend: f.state == StateAwaitingCode && !f.inflight && f.timer.CanResend(),
		Err:       f.err,
		User:      f.user,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Focus returns the slot that should receive the next digit.
func (f *Flow) Focus() int { return f.code.Focus() }

func (f *Flow) acceptInput() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inflight {
		return ErrBusy
	}
	if f.state != StateAwaitingCode {
		return fmt.Errorf("%w: %s", ErrInvalidState, f.state)
	}
	return nil
}

func (f *Flow) verifyPending(ctx context.Context) error {
	f.mu.Lock()
	code := f.pending
	f.pending = ""
	f.mu.Unlock()

	if code == "" {
		f.notify()
		return nil
	}

	if err := f.begin(ctx, StateVerifying, nil, StateAwaitingCode); err != nil {
		return err
	}
	session := f.requester.Current()

	tokens, err := f.verifier.Verify(ctx, session.ID, code)
	if err != nil {
		f.finish(ctx, StateAwaitingCode, err)
		return err
	}

	f.transition(ctx, StateEstablishing)

	user, err := f.establisher.Establish(ctx, tokens, session.Phone)
	if err != nil {
		// The code has been spent on this session; only a new one can succeed.
		f.requester.Discard()
		f.timer.Expire()
		f.finish(ctx, StateAwaitingCode, err)
		return err
	}

	f.mu.Lock()
	f.user = user
	f.mu.Unlock()

	f.timer.Stop()
	f.code.Clear()
	f.finish(ctx, StateAuthenticated, nil)
	return nil
}

// begin moves into a request-carrying state if no request is outstanding, the
// current state is one of from and guard, when set, returns nil. guard runs
// with f.mu held.
func (f *Flow) begin(ctx context.Context, to State, guard func() error, from ...State) error {
	f.mu.Lock()
	if f.inflight {
		f.mu.Unlock()
		return ErrBusy
	}

	allowed := false
	for _, s := range from {
		if f.state == s {
			allowed = true
			break
		}
	}
	if !allowed {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	if guard != nil {
		if err := guard(); err != nil {
			f.mu.Unlock()
			return err
		}
	}

	prev := f.state
	f.state = to
	f.inflight = true
	f.err = nil
	f.mu.Unlock()

	slogx.FromContext(ctx).Debug("otp flow transition", "from", prev.String(), "to", to.String())
	f.notify()
	return nil
}

func (f *Flow) transition(ctx context.Context, to State) {
	f.mu.Lock()
	prev := f.state
	f.state = to
	f.mu.Unlock()

	slogx.FromContext(ctx).Debug("otp flow transition", "from", prev.String(), "to", to.String())
	f.notify()
}

// finish ends the outstanding request in state to, recording err.
func (f *Flow) finish(ctx context.Context, to State, err error) {
	f.mu.Lock()
	prev := f.state
	f.state = to
	f.inflight = false
	f.err = err
	f.mu.Unlock()

	log := slogx.FromContext(ctx)
	if err != nil {
		log.Info("otp flow step failed", "from", prev.String(), "to", to.String(), "kind", KindOf(err).String(), "error", err)
	} else {
		log.Debug("otp flow transition", "from", prev.String(), "to", to.String())
	}
	f.notify()
}

func (f *Flow) notify() {
	if f.onChange == nil {
		return
	}
	f.onChange(f.Snapshot())
}
