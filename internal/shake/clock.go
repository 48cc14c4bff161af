package shake

import "time"

// Clock is the scheduler every state machine runs on.
type Clock interface {
	Now() time.Time
	// AfterFunc runs fn once, on the clock's goroutine, after d.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped it, false if it already ran or was stopped.
	Stop() bool
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
