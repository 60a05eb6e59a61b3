package wavechan

import "time"

type (
	// Timer is a pending callback created by a Clock.
	Timer interface {
		Stop() bool
	}

	// Clock schedules the channel's reconnect and heartbeat timers.
	Clock interface {
		Now() time.Time
		AfterFunc(d time.Duration, f func()) Timer
	}

	realClock struct{}
)

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is backed by the time package.
var SystemClock Clock = realClock{}
