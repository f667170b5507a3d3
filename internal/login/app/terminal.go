package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/medportal/phoneauth/internal/login/domain"
	"github.com/medportal/phoneauth/internal/login/present"
	"github.com/medportal/phoneauth/pkg/otpflow"
	"github.com/medportal/phoneauth/pkg/slogx"
)

// ErrAbandoned is returned by Login when the user quits before signing in.
var ErrAbandoned = errors.New("login abandoned")

// errRestart sends the terminal back to the phone prompt.
var errRestart = errors.New("restart from phone entry")

// Login runs the interactive flow over line-based input. A cached session
// is reused unless force is set.
func (app *Application) Login(ctx context.Context, in io.Reader, out io.Writer, force bool) (otpflow.User, error) {
	ctx = slogx.WithContext(ctx, app.logger.With("profile", app.cfg.Profile))

	if !force {
		user, err := app.Resume(ctx)
		if err == nil {
			fmt.Fprintf(out, "Already signed in as %s.\n", DisplayName(user))
			return user, nil
		}
		if !errors.Is(err, ErrNotSignedIn) {
			slogx.FromContext(ctx).Warn("resume cached session failed", "error", err)
		}
	}

	t := &terminal{
		app: app,
		out: &lockedWriter{w: out},
	}
	t.presenter = &present.Presenter{Out: t.out, QR: app.cfg.QR}
	t.lines = readLines(ctx, in)
	t.flow = app.newFlow(t.onResendAvailable)

	t.flow.Start()
	defer t.flow.Close()

	return t.run(ctx)
}

// DisplayName picks the friendliest identifier of u.
func DisplayName(u otpflow.User) string {
	if name := u.FullName(); name != "" {
		return name
	}
	if u.Phone != "" {
		return u.Phone
	}
	if u.ID != "" {
		return u.ID
	}
	return "your account"
}

// terminal is one interactive login. Prompts are written from the caller's
// goroutine; resend notices arrive from the countdown goroutine, so every
// write goes through lockedWriter.
type terminal struct {
	app       *Application
	out       *lockedWriter
	lines     <-chan string
	presenter *present.Presenter
	flow      *otpflow.Flow

	phone     string
	sessionID string
}

func (t *terminal) run(ctx context.Context) (otpflow.User, error) {
	for {
		if err := t.requestSession(ctx); err != nil {
			return otpflow.User{}, err
		}

		user, err := t.collectCode(ctx)
		if errors.Is(err, errRestart) {
			continue
		}
		return user, err
	}
}

// requestSession prompts for a phone number until a verification session is
// issued. "r" retries the last number.
func (t *terminal) requestSession(ctx context.Context) error {
	for {
		t.printf("Phone number (r to retry, q to quit): ")
		line, err := t.readLine(ctx)
		if err != nil {
			return t.abandon(ctx, err)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "q":
			return t.abandon(ctx, nil)
		case "r":
			err = t.flow.Resend(ctx)
		default:
			phone, nerr := NormalizePhone(line, t.app.cfg.DialCode)
			if nerr != nil {
				t.printf("%s\n", nerr)
				continue
			}
			t.phone, t.sessionID = phone, ""
			err = t.flow.Submit(ctx, phone)
		}

		if err != nil {
			t.fail(ctx, err)
			continue
		}
		return t.present()
	}
}

// collectCode reads codes until the flow authenticates. It returns errRestart
// when a failed resend left the flow idle.
func (t *terminal) collectCode(ctx context.Context) (otpflow.User, error) {
	for {
		t.printf("Code: ")
		line, err := t.readLine(ctx)
		if err != nil {
			return otpflow.User{}, t.abandon(ctx, err)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "q":
			return otpflow.User{}, t.abandon(ctx, nil)
		case "r":
			if err := t.resend(ctx); err != nil {
				return otpflow.User{}, err
			}
			continue
		}

		// A new line replaces whatever was typed before.
		if err := t.flow.ClearCode(); err != nil {
			return otpflow.User{}, err
		}
		err = t.flow.Paste(ctx, line)
		snap := t.flow.Snapshot()

		switch {
		case err != nil:
			t.fail(ctx, err)
			if otpflow.KindOf(err) == otpflow.KindSessionEstablishFailed {
				t.printf("Type r to request a new code.\n")
			}
		case snap.State == otpflow.StateAuthenticated:
			t.app.recordAttempt(ctx, t.phone, t.sessionID, domain.OutcomeAuthenticated, nil)
			t.printf("Signed in as %s.\n", DisplayName(snap.User))
			return snap.User, nil
		default:
			t.printf("The code has %d digits.\n", otpflow.CodeLength)
		}
	}
}

func (t *terminal) resend(ctx context.Context) error {
	err := t.flow.Resend(ctx)
	switch {
	case err == nil:
		return t.present()
	case errors.Is(err, otpflow.ErrResendUnavailable):
		t.printf("You can request a new code in %s.\n", t.flow.Snapshot().ResendIn)
		return nil
	default:
		t.fail(ctx, err)
		if t.flow.State() == otpflow.StateIdle {
			return errRestart
		}
		return nil
	}
}

// present shows the current session.
func (t *terminal) present() error {
	snap := t.flow.Snapshot()
	t.sessionID = snap.Session.ID

	if err := t.presenter.Present(snap.Session, t.app.now()); err != nil {
		return fmt.Errorf("present deep link: %w", err)
	}
	t.printf("Enter the %d-digit code from the bot (r to resend, q to quit).\n", otpflow.CodeLength)
	return nil
}

func (t *terminal) fail(ctx context.Context, err error) {
	t.printf("%s\n", otpflow.UserMessage(err))
	if t.phone != "" {
		t.app.recordAttempt(ctx, t.phone, t.sessionID, domain.OutcomeFailed, err)
	}
}

// abandon journals a login the user walked away from. cause is nil for an
// explicit quit; end of input counts as one too.
func (t *terminal) abandon(ctx context.Context, cause error) error {
	if t.phone != "" {
		t.app.recordAttempt(context.WithoutCancel(ctx), t.phone, t.sessionID, domain.OutcomeAbandoned, nil)
	}
	t.printf("\nLogin cancelled.\n")

	if cause == nil || errors.Is(cause, io.EOF) {
		return ErrAbandoned
	}
	return cause
}

func (t *terminal) onResendAvailable() {
	t.printf("\nYou can request a new code now: type r.\n")
}

func (t *terminal) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// readLines feeds lines from in until EOF or ctx is done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
