package present

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrNotTelegramLink is returned for links that do not point at a Telegram bot.
var ErrNotTelegramLink = errors.New("present: not a telegram bot link")

var botNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{3,31}$`)

// DeepLink is a parsed Telegram bot start link.
type DeepLink struct {
	URL     string
	Bot     string // username without the leading @
	Payload string // start parameter, may be empty
}

// ParseDeepLink understands https://t.me/<bot>?start=<payload>, its
// telegram.me aliases and tg://resolve?domain=<bot>&start=<payload>.
func ParseDeepLink(raw string) (DeepLink, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return DeepLink{}, ErrNotTelegramLink
	}

	var bot string
	switch strings.ToLower(u.Scheme) {
	case "https", "http":
		switch strings.ToLower(u.Host) {
		case "t.me", "telegram.me", "www.telegram.me", "telegram.dog":
		default:
			return DeepLink{}, ErrNotTelegramLink
		}
		bot = strings.Trim(u.Path, "/")
	case "tg":
		if !strings.EqualFold(u.Host, "resolve") && !strings.EqualFold(u.Opaque, "//resolve") {
			return DeepLink{}, ErrNotTelegramLink
		}
		bot = u.Query().Get("domain")
	default:
		return DeepLink{}, ErrNotTelegramLink
	}

	if !botNameRe.MatchString(bot) {
		return DeepLink{}, ErrNotTelegramLink
	}

	return DeepLink{
		URL:     raw,
		Bot:     bot,
		Payload: u.Query().Get("start"),
	}, nil
}
