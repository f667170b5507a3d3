package app

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DefaultDialCode is used for numbers typed without an international prefix.
const DefaultDialCode = "+998"

var (
	ErrInvalidPhone = errors.New("invalid phone number")

	dialCodeRe = regexp.MustCompile(`^\+\d{1,3}$`)
	uzPhoneRe  = regexp.MustCompile(`^\+998\d{9}$`)
)

// NormalizePhone turns user input into E.164. Separators (spaces, dashes,
// parentheses, dots) are ignored; a leading 00 is read as +. Numbers without
// an international prefix get dialCode, unless they already start with its
// digits. Uzbek numbers are held to the strict +998XXXXXXXXX format; any
// other number must be a valid number of its country.
func NormalizePhone(raw, dialCode string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: phone is required", ErrInvalidPhone)
	}

	international := false
	switch {
	case strings.HasPrefix(s, "+"):
		international = true
		s = s[1:]
	case strings.HasPrefix(s, "00"):
		international = true
		s = s[2:]
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
		case unicode.IsDigit(r):
			return "", fmt.Errorf("%w: use ASCII digits", ErrInvalidPhone)
		default:
			return "", fmt.Errorf("%w: contains %q", ErrInvalidPhone, r)
		}
	}

	number := digits.String()
	if !international {
		code := strings.TrimPrefix(dialCode, "+")
		if !strings.HasPrefix(number, code) || len(number) <= 9 {
			number = code + number
		}
	}
	e164 := "+" + number

	if len(number) < 8 || len(number) > 15 {
		return "", fmt.Errorf("%w: must have 8 to 15 digits", ErrInvalidPhone)
	}
	if strings.HasPrefix(e164, "+998") {
		if !uzPhoneRe.MatchString(e164) {
			return "", fmt.Errorf("%w: must match +998XXXXXXXXX", ErrInvalidPhone)
		}
		return e164, nil
	}

	num, err := phonenumbers.Parse(e164, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: not a number in use in its country", ErrInvalidPhone)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
