package clock

import "time"

// Clock supplies timestamps to the ledger and the alert evaluator so that
// event times are deterministic under test.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// New returns a Clock backed by the system time in UTC.
func New() Clock { return realClock{} }

// Fixed is a Clock pinned to a settable instant.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed instant forward.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
