package shake

import (
	"math/rand"
	"testing"
	"time"

	logx "shakethefrog/pkg/logx"
)

func newSession(c *VirtualClock) *Session {
	opts := DefaultOptions()
	opts.Catalog = phrases
	opts.Rand = rand.New(rand.NewSource(42))
	opts.Logger = logx.Nop()
	return NewSession(c, opts)
}

func TestSessionWiresHeartsAndMessages(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	s := newSession(c)
	defer s.Close()

	if out := s.Trigger.Activate(); out != Started {
		t.Fatalf("Activate = %v", out)
	}
	snap := s.Snapshot()
	if !snap.Shaking || snap.ShakeCount != 1 || snap.Intensity != 25 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !snap.MessageVisible || snap.Message == "" {
		t.Fatalf("no message shown on first shake")
	}
	if len(snap.Hearts) != 13 {
		t.Fatalf("hearts = %d, want first wave of 13", len(snap.Hearts))
	}

	c.Advance(ms(250))
	s.Trigger.Click()
	snap = s.Snapshot()
	if !snap.CatchUpQueued || snap.ShakeCount != 1 {
		t.Fatalf("click during cycle was not queued: %+v", snap)
	}

	c.Advance(ms(400)) // reset at 600, catch-up at 616
	snap = s.Snapshot()
	if snap.ShakeCount != 2 || !snap.Shaking {
		t.Fatalf("catch-up cycle missing: %+v", snap)
	}
	if snap.QueuedMessages != 1 {
		t.Fatalf("queued messages = %d, want 1", snap.QueuedMessages)
	}
}

func TestSessionMountUnmountBeforeTimers(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	s := newSession(c)
	before := s.Snapshot()
	s.Close()
	s.Close()

	c.Advance(time.Minute)
	after := s.Snapshot()
	if after.Shaking || after.ShakeCount != 0 || after.MessageVisible || len(after.Hearts) != 0 {
		t.Fatalf("state changed after unmount: %+v", after)
	}
	if before.ShakeCount != after.ShakeCount || c.Pending() != 0 {
		t.Fatalf("pending timers after unmount: %d", c.Pending())
	}
}

func TestSessionTeardownMidCycle(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	s := newSession(c)
	s.Trigger.Activate()
	c.Advance(ms(150))
	s.Trigger.Activate()

	s.Close()
	if c.Pending() != 0 {
		t.Fatalf("timers pending after teardown: %d", c.Pending())
	}
	c.Advance(time.Minute)
	snap := s.Snapshot()
	if snap.ShakeCount != 1 {
		t.Fatalf("phantom cycle after teardown: %+v", snap)
	}
	if s.Trigger.Activate() != DroppedClosed {
		t.Fatalf("signal accepted after teardown")
	}
}

func TestSessionApplyTuning(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	s := newSession(c)
	defer s.Close()

	opts := DefaultOptions()
	opts.Trigger.DefaultIntensity = 5
	s.Apply(opts)

	s.Trigger.Activate()
	if got := len(s.Snapshot().Hearts); got != 3 {
		t.Fatalf("hearts = %d, want first wave of 10 split in 4 (3)", got)
	}
}
