package session

import "time"

// Timer is a cancellable one-shot scheduled task.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// task from firing.
	Stop() bool
}

// Clock abstracts the host timer primitive so the renewal scheduler can run
// against virtual time in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the wall-clock implementation used outside tests.
func SystemClock() Clock {
	return systemClock{}
}
