package ports

import "time"

// Clock times load and recompute passes.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ClockFunc adapts a plain function, such as a CLI's injectable now.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}
