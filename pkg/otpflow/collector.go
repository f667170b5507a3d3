package otpflow

import (
	"strings"
	"sync"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

// CodeInput collects a fixed-length numeric code one slot at a time or from a
// single paste. Invalid input is ignored without error.
//
// Focus is advice for the presentation layer: it names the slot that should
// receive the next keystroke.
type CodeInput struct {
	mu         sync.Mutex
	slots      [CodeLength]string
	focus      int
	complete   bool
	onComplete func(code string)
}

// NewCodeInput returns an empty collector. onComplete may be nil; it is
// called exactly once each time the slots go from incomplete to complete.
func NewCodeInput(onComplete func(code string)) *CodeInput {
	return &CodeInput{onComplete: onComplete}
}

// SetDigit writes s into slot i. Only a single ASCII digit or the empty
// string is accepted; anything else leaves the collector untouched and
// returns false.
func (c *CodeInput) SetDigit(i int, s string) bool {
	if i < 0 || i >= CodeLength {
		return false
	}
	if s != "" && !isDigit(s) {
		return false
	}

	c.mu.Lock()
	c.slots[i] = s
	if s != "" && i < CodeLength-1 {
		c.focus = i + 1
	} else {
		c.focus = i
	}
	code, fire := c.evaluateLocked()
	c.mu.Unlock()

	c.fire(code, fire)
	return true
}

// Paste fills slots from the left with the digits found in raw, ignoring every
// other character and anything past CodeLength digits. Slots beyond the pasted
// digits keep their contents. It returns the number of slots written.
func (c *CodeInput) Paste(raw string) int {
	digits := make([]string, 0, CodeLength)
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		digits = append(digits, string(r))
		if len(digits) == CodeLength {
			break
		}
	}
	if len(digits) == 0 {
		return 0
	}

	c.mu.Lock()
	copy(c.slots[:], digits)
	c.focus = len(digits) - 1
	code, fire := c.evaluateLocked()
	c.mu.Unlock()

	c.fire(code, fire)
	return len(digits)
}

// Backspace clears slot i. On an already empty slot it moves focus back one
// slot instead.
func (c *CodeInput) Backspace(i int) {
	if i < 0 || i >= CodeLength {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slots[i] != "" {
		c.slots[i] = ""
		c.focus = i
		c.evaluateLocked()
		return
	}
	if i > 0 {
		c.focus = i - 1
	}
}

// Clear empties every slot without firing onComplete.
func (c *CodeInput) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slots = [CodeLength]string{}
	c.focus = 0
	c.complete = false
}

// Focus returns the slot that should receive the next keystroke.
func (c *CodeInput) Focus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus
}

// Slots returns a copy of the current slots.
func (c *CodeInput) Slots() [CodeLength]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots
}

// Code returns the concatenated digits entered so far.
func (c *CodeInput) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.slots[:], "")
}

// Complete reports whether every slot holds a digit.
func (c *CodeInput) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.complete
}

// evaluateLocked recomputes completeness and reports whether this mutation
// was the transition into the complete state.
func (c *CodeInput) evaluateLocked() (string, bool) {
	full := true
	for _, s := range c.slots {
		if s == "" {
			full = false
			break
		}
	}

	transitioned := full && !c.complete
	c.complete = full
	if !transitioned {
		return "", false
	}
	return strings.Join(c.slots[:], ""), true
}

func (c *CodeInput) fire(code string, ok bool) {
	if ok && c.onComplete != nil {
		c.onComplete(code)
	}
}

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

// isCode reports whether s is exactly CodeLength ASCII digits.
func isCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
