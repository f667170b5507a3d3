package present

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/medportal/phoneauth/pkg/otpflow"
)

// ErrNoSession is returned when there is no issued session to present.
var ErrNoSession = errors.New("no verification session to present")

// Presenter shows a verification session's deep link to the user. It only
// relays the link; it never opens it.
type Presenter struct {
	Out io.Writer

	// QR adds a scannable code below the link.
	QR bool
}

// Present writes instructions for session. A link that is not a recognised
// Telegram bot link is still shown verbatim.
func (p *Presenter) Present(session otpflow.VerificationSession, now time.Time) error {
	if session.IsZero() {
		return ErrNoSession
	}

	link, err := ParseDeepLink(session.DeepLink)
	if err != nil {
		_, err = fmt.Fprintf(p.Out, "\nOpen this link to receive your code:\n  %s\n", session.DeepLink)
		return err
	}

	if _, err := fmt.Fprintf(p.Out, "\nOpen @%s in Telegram and press Start to receive your code:\n  %s\n",
		link.Bot, link.URL); err != nil {
		return err
	}

	if p.QR {
		code, err := QR(link.URL)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(p.Out, "\n%s", code); err != nil {
			return err
		}
	}

	if !session.ExpiresAt.IsZero() {
		left := session.ExpiresAt.Sub(now).Round(time.Second)
		if left > 0 {
			_, err := fmt.Fprintf(p.Out, "The code is valid for %s.\n", left)
			return err
		}
	}
	return nil
}
