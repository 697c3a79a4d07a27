// Package clock provides time utilities so rooms and repositories can be
// driven by a fake clock in tests
package clock

import "time"

//go:generate mockgen -destination=mock/mock.go -package=mockclock github.com/KirkDiggler/hexhaven-api/internal/pkg/clock Clock

// Clock provides time functionality
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed. The returned
	// stop func reports whether it prevented f from running.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// Real implements Clock using actual system time
type Real struct{}

// Now returns the current time
func (c *Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc
func (c *Real) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// New returns a new real clock
func New() Clock {
	return &Real{}
}
