package domain

import "time"

// Clock abstracts wall-clock time so the state machine can be tested
// deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
