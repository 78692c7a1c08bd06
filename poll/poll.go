// Package poll bounds the hardware status busy-waits used by the bus drivers.
package poll

import (
	"errors"
	"time"
)

// ErrTimeout is returned when a polled condition did not become true within
// its Bound.
var ErrTimeout = errors.New("bus timeout")

// Bound limits a busy-wait. Spins caps the number of condition checks and
// Timeout caps the elapsed time; whichever trips first ends the wait.
// The zero Bound waits forever.
type Bound struct {
	Spins   int
	Timeout time.Duration
}

// Unbounded reports whether b never expires.
func (b Bound) Unbounded() bool { return b.Spins <= 0 && b.Timeout <= 0 }

// Error records which wait expired.
type Error struct {
	Op    string // condition being waited for, e.g. "i2cx: SB"
	Spins int    // checks performed before giving up
}

func (e *Error) Error() string { return e.Op + ": " + ErrTimeout.Error() }

func (e *Error) Unwrap() error { return ErrTimeout }

// Until evaluates cond until it returns true. It returns nil on success and
// an *Error wrapping ErrTimeout once b is exhausted.
func Until(b Bound, op string, cond func() bool) error {
	var start time.Time
	if b.Timeout > 0 {
		start = time.Now()
	}
	for n := 1; ; n++ {
		if cond() {
			return nil
		}
		if b.Spins > 0 && n >= b.Spins {
			return &Error{Op: op, Spins: n}
		}
		if b.Timeout > 0 && time.Since(start) >= b.Timeout {
			return &Error{Op: op, Spins: n}
		}
	}
}
