package chat

import "time"

type Timer interface {
	Stop() bool
}

// Clock schedules deferred work. Sessions use it for the auto-speak delay.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall-clock Clock.
func SystemClock() Clock {
	return systemClock{}
}
