package shake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logx "shakethefrog/pkg/logx"
)

// ErrLoopStopped is returned when work is posted to a loop that is no longer running.
var ErrLoopStopped = errors.New("shake: loop stopped")

// Loop is the production Clock. Timers are real, but their callbacks and
// every Post'ed function run one at a time on the goroutine inside Run.
type Loop struct {
	calls chan func()
	done  chan struct{}
	once  sync.Once
	log   logx.Logger
}

func NewLoop(buffer int, log logx.Logger) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		calls: make(chan func(), buffer),
		done:  make(chan struct{}),
		log:   log,
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stopped between expiry and execution.
			if !lt.state.CompareAndSwap(timerPending, timerFired) {
				return
			}
			fn()
		})
	})
	return lt
}

// Post queues fn for the loop goroutine. It blocks while the queue is full
// and returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.calls <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Run executes posted work until ctx is done. A panicking callback is logged
// and the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.calls:
			l.invoke(fn)
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("loop callback panic",
				logx.String("panic", fmt.Sprint(r)),
				logx.Stack(logx.StackTrace(3, 24)),
			)
		}
	}()
	fn()
}

const (
	timerPending int32 = iota
	timerFired
	timerStopped
)

type loopTimer struct {
	t     *time.Timer
	state atomic.Int32
}

func (t *loopTimer) Stop() bool {
	if !t.state.CompareAndSwap(timerPending, timerStopped) {
		return false
	}
	t.t.Stop()
	return true
}
