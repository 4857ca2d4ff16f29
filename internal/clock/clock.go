// Package clock lets the scheduler and state machine read time through an injectable source.
package clock

import "time"

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// System is the wall clock, always in UTC
var System Clock = Func(func() time.Time { return time.Now().UTC() })

// Fixed returns a clock frozen at t
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}
