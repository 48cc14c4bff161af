package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "shakethefrog/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw   string
		kind  Kind
		spec  string
		every time.Duration
	}{
		{raw: "*/5 * * * *", kind: KindCron, spec: "*/5 * * * *"},
		{raw: "cron:0 0 * * *", kind: KindCron, spec: "0 0 * * *"},
		{raw: "@daily", kind: KindCron, spec: "@daily"},
		{raw: "@every 10m", kind: KindCron, spec: "@every 10m"},
		{raw: "15m", kind: KindInterval, spec: "@every 15m0s", every: 15 * time.Minute},
		{raw: "interval:45s", kind: KindInterval, spec: "@every 45s", every: 45 * time.Second},
		{raw: "every:01:30", kind: KindInterval, spec: "@every 1h30m0s", every: 90 * time.Minute},
		{raw: "00:50", kind: KindInterval, spec: "@every 50m0s", every: 50 * time.Minute},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error = %v", tt.raw, err)
			}
			if got.Kind != tt.kind || got.Spec() != tt.spec || got.Every != tt.every {
				t.Fatalf("ParseSchedule(%q) = %+v (spec %q), want kind %v spec %q", tt.raw, got, got.Spec(), tt.kind, tt.spec)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "not-a-schedule", "cron:", "61 * * * *", "-5m", "00:75", "00:00", "interval:"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q) should fail", raw)
		}
	}
}

func TestSchedulerRunNowAndStatus(t *testing.T) {
	t.Parallel()

	s, err := New("UTC", logx.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	var runs atomic.Int32
	boom := errors.New("boom")
	if err := s.Add("prices", "15m", time.Second, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("job ctx has no deadline")
		}
		if runs.Add(1) == 2 {
			return boom
		}
		return nil
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("prices", "@daily", 0, func(context.Context) error { return nil }); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate Add() error = %v", err)
	}
	if err := s.Add("bad", "whenever", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatalf("Add(bad schedule) should fail")
	}

	ctx := context.Background()
	if err := s.RunNow(ctx, "prices"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if err := s.RunNow(ctx, "prices"); !errors.Is(err, boom) {
		t.Fatalf("RunNow() error = %v, want boom", err)
	}
	if err := s.RunNow(ctx, "missing"); err == nil {
		t.Fatalf("RunNow(missing) should fail")
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	st := s.Snapshot()
	if len(st) != 1 || st[0].Runs != 2 || st[0].Failures != 1 || st[0].LastErr != "boom" {
		t.Fatalf("Snapshot() = %+v", st)
	}
	if st[0].Spec != "@every 15m0s" || st[0].Next.IsZero() {
		t.Fatalf("Snapshot() spec/next = %q/%v", st[0].Spec, st[0].Next)
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	s, _ := New("", logx.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	_ = s.Add("slow", "@hourly", 0, func(context.Context) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started
	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, errSkipped) {
		t.Fatalf("overlapping RunNow() error = %v, want skipped", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run error = %v", err)
	}
	if st := s.Snapshot(); st[0].Skipped != 1 || st[0].Runs != 1 {
		t.Fatalf("Snapshot() = %+v", st)
	}
}

func TestNewRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	if _, err := New("Mars/Olympus", logx.Nop()); err == nil {
		t.Fatalf("New(bad tz) should fail")
	}
}
