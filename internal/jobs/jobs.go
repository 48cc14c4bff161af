// Package jobs runs named periodic jobs (price refresh, storage pruning) on
// robfig/cron with per-job timeouts and overlap protection.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "shakethefrog/pkg/logx"
)

var ErrDuplicate = errors.New("jobs: duplicate job name")

// Func is one job run. ctx carries the job timeout.
type Func func(ctx context.Context) error

// Status is a job's run history.
type Status struct {
	Name         string        `json:"name"`
	Spec         string        `json:"spec"`
	Next         time.Time     `json:"next,omitempty"`
	Prev         time.Time     `json:"prev,omitempty"`
	Runs         uint64        `json:"runs"`
	Failures     uint64        `json:"failures"`
	Skipped      uint64        `json:"skipped"`
	LastErr      string        `json:"last_err,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
}

type entry struct {
	name    string
	sched   Schedule
	timeout time.Duration
	fn      Func
	id      cron.EntryID

	running chan struct{}
	st      Status
}

// Scheduler owns one cron instance. Jobs are added before Start.
type Scheduler struct {
	log logx.Logger
	loc *time.Location

	mu      sync.Mutex
	c       *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]*entry
}

// New builds a scheduler in the given IANA timezone (empty: local).
func New(timezone string, log logx.Logger) (*Scheduler, error) {
	loc := time.Local
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("jobs timezone: %w", err)
		}
		loc = l
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{log: log, loc: loc, entries: map[string]*entry{}}, nil
}

// Add registers fn under name. timeout <= 0 means no per-run deadline.
func (s *Scheduler) Add(name, schedule string, timeout time.Duration, fn Func) error {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	e := &entry{name: name, sched: sched, timeout: timeout, fn: fn, running: make(chan struct{}, 1)}
	e.st = Status{Name: name, Spec: sched.Spec()}
	s.entries[name] = e
	if s.c != nil {
		return s.scheduleLocked(e)
	}
	return nil
}

func (s *Scheduler) scheduleLocked(e *entry) error {
	id, err := s.c.AddFunc(e.sched.Spec(), func() { s.run(e) })
	if err != nil {
		return fmt.Errorf("job %s: %w", e.name, err)
	}
	e.id = id
	return nil
}

// Start schedules every job. Runs stop when ctx is done or on Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger{s.log})),
	)
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.scheduleLocked(s.entries[name]); err != nil {
			s.c = nil
			s.cancel()
			return err
		}
	}
	s.c.Start()
	s.log.Info("jobs started", logx.Int("jobs", len(names)), logx.String("tz", s.loc.String()))
	return nil
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("jobs stop timed out", logx.Err(ctx.Err()))
	}
}

// RunNow runs name synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobs: unknown job %q", name)
	}
	return s.exec(ctx, e)
}

func (s *Scheduler) run(e *entry) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if err := s.exec(ctx, e); err != nil && !errors.Is(err, errSkipped) {
		s.log.Warn("job failed", logx.String("job", e.name), logx.Err(err))
	}
}

var errSkipped = errors.New("jobs: previous run still active")

func (s *Scheduler) exec(ctx context.Context, e *entry) error {
	select {
	case e.running <- struct{}{}:
	default:
		s.mu.Lock()
		e.st.Skipped++
		s.mu.Unlock()
		s.log.Debug("job skipped; still running", logx.String("job", e.name))
		return errSkipped
	}
	defer func() { <-e.running }()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	start := time.Now()
	err := e.fn(ctx)
	took := time.Since(start)

	s.mu.Lock()
	e.st.Runs++
	e.st.LastDuration = took
	if err != nil {
		e.st.Failures++
		e.st.LastErr = err.Error()
	} else {
		e.st.LastErr = ""
	}
	s.mu.Unlock()
	s.log.Debug("job done", logx.String("job", e.name), logx.Duration("took", took), logx.Bool("ok", err == nil))
	return err
}

// Snapshot lists job statuses by name.
func (s *Scheduler) Snapshot() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.entries))
	for _, e := range s.entries {
		st := e.st
		if s.c != nil && e.id != 0 {
			ce := s.c.Entry(e.id)
			st.Next, st.Prev = ce.Next, ce.Prev
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
