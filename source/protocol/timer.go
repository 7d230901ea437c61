package protocol

import "time"

// Timer rings once every period, with no drift correction: callers are
// expected to poll Ringing() faster than 1/period. Component A of the
// connection runtime.
type Timer struct {
	period   time.Duration
	nextFire time.Time
}

// NewTimer builds a timer whose first natural ring is one period from now.
func NewTimer(period time.Duration) *Timer {
	return &Timer{
		period:   period,
		nextFire: time.Now().Add(period),
	}
}

// Ringing reports whether wall-clock time has passed the next-fire instant.
func (t *Timer) Ringing() bool {
	return !time.Now().Before(t.nextFire)
}

// Reset moves the next-fire instant one period forward from now.
func (t *Timer) Reset() {
	t.nextFire = time.Now().Add(t.period)
}

// RingManual forces the next Ringing() call to return true, used to make
// the first handshake attempt go out immediately instead of waiting a full
// period.
func (t *Timer) RingManual() {
	t.nextFire = time.Now()
}
