package otpflow

import (
	"sync"
	"time"
)

// ResendTimer counts down whole seconds until a new session may be requested.
//
// Tick and Reset may be driven manually; Start runs a background ticker that
// calls Tick once per Interval until Stop is called.
type ResendTimer struct {
	// Interval between background ticks. Defaults to one second.
	Interval time.Duration

	// OnTick is called after every tick that changed the remaining time.
	OnTick func(left time.Duration)
	// OnAvailable is called once each time the countdown reaches zero.
	OnAvailable func()

	mu        sync.Mutex
	remaining int // seconds

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewResendTimer returns a stopped timer with nothing to count down.
func NewResendTimer() *ResendTimer {
	return &ResendTimer{
		Interval: time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Reset arms the countdown to d, rounded up to whole seconds.
func (t *ResendTimer) Reset(d time.Duration) {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}

	t.mu.Lock()
	t.remaining = secs
	t.mu.Unlock()
}

// Expire drops the countdown to zero immediately, making resend available.
func (t *ResendTimer) Expire() {
	t.mu.Lock()
	t.remaining = 0
	t.mu.Unlock()
}

// Tick decrements the countdown by one second and returns what is left.
// It never goes below zero.
func (t *ResendTimer) Tick() time.Duration {
	t.mu.Lock()
	if t.remaining == 0 {
		t.mu.Unlock()
		return 0
	}
	t.remaining--
	left := t.remaining
	onTick, onAvailable := t.OnTick, t.OnAvailable
	t.mu.Unlock()

	// Hooks run outside the lock so they may query the timer.
	if onTick != nil {
		onTick(time.Duration(left) * time.Second)
	}
	if left == 0 && onAvailable != nil {
		onAvailable()
	}
	return time.Duration(left) * time.Second
}

// Remaining returns the time left before resend becomes available.
func (t *ResendTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.remaining) * time.Second
}

// CanResend reports whether the countdown has elapsed.
func (t *ResendTimer) CanResend() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining == 0
}

// Start launches the background ticker. Calling it more than once has no
// effect.
func (t *ResendTimer) Start() {
	t.startOnce.Do(func() {
		go t.run()
	})
}

// Stop cancels the background ticker and waits for it to exit. It is safe to
// call Stop without Start and to call it more than once.
func (t *ResendTimer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})

	// If Start never ran, make sure it never will and don't wait for a worker.
	started := true
	t.startOnce.Do(func() { started = false })
	if started {
		<-t.doneCh
	}
}

func (t *ResendTimer) run() {
	defer close(t.doneCh)

	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Tick()
		case <-t.stopCh:
			return
		}
	}
}
