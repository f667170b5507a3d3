// Package idx mints ULIDs for outbound request ids and login journal entries.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in canonical string form. IDs minted by this package sort by
// the instant they were minted for, even within one millisecond.
type ID string

// ErrInvalid reports a string that is not a canonical ULID.
var ErrInvalid = errors.New("idx: invalid ulid")

var (
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
)

// New mints an ID for the current instant.
func New() ID {
	return NewAt(time.Now())
}

// NewAt mints an ID for t, so a journal entry can carry the time of the
// event it records rather than the time it was written.
func NewAt(t time.Time) ID {
	mu.Lock()
	defer mu.Unlock()

	if entropy == nil {
		entropy = ulid.Monotonic(rand.Reader, 0)
	}
	return ID(ulid.MustNew(ulid.Timestamp(t.UTC()), entropy).String())
}

// Parse validates s as a canonical ULID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", ErrInvalid
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// Time returns the millisecond instant embedded in id, or the zero time when
// id is not a ULID.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time()).UTC()
}
