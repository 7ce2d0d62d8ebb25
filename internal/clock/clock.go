package clock

import "time"

// Clock abstracts the time operations used by debounce and polling code.
// Production code uses Real(); tests use Fake() and advance time by hand.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer can cancel
	// the pending call.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop cancels the call. It reports whether the timer was still pending.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset reschedules the call to fire d from now. It reports whether the
// timer was pending before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }

// Ticker delivers periodic ticks. C has capacity 1; late ticks are dropped.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }
