package shake

import (
	"math/rand"
	"testing"
	"time"
)

func newEmitter(c *VirtualClock) *HeartEmitter {
	return NewHeartEmitter(c, DefaultHeartsConfig(), rand.New(rand.NewSource(1)))
}

func TestHeartCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		intensity float64
		want      int
	}{
		{0, 0},
		{-5, 0},
		{0.4, 0},
		{0.5, 1},
		{12.7, 25},
		{25, 50},
		{1000, 50},
	}
	for _, tt := range tests {
		if got := HeartCount(tt.intensity, 50); got != tt.want {
			t.Fatalf("HeartCount(%v) = %d, want %d", tt.intensity, got, tt.want)
		}
	}
}

func TestWaveSizesSumToCount(t *testing.T) {
	t.Parallel()

	for count := 0; count <= 60; count++ {
		sizes := WaveSizes(count, 4)
		sum := 0
		for i, n := range sizes {
			sum += n
			if i > 0 && n > sizes[i-1] {
				t.Fatalf("WaveSizes(%d) = %v, later wave larger", count, sizes)
			}
		}
		if sum != count {
			t.Fatalf("WaveSizes(%d) = %v, sum %d", count, sizes, sum)
		}
	}
	if got := WaveSizes(50, 4); got[0] != 13 || got[3] != 12 {
		t.Fatalf("WaveSizes(50, 4) = %v", got)
	}
}

func TestHeartsBoundedPerShake(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	e := newEmitter(c)

	if planned := e.Emit(1000); planned != 50 {
		t.Fatalf("planned = %d, want 50", planned)
	}
	total := e.Len()
	for i := 0; i < 4; i++ {
		c.Advance(ms(200))
		if e.Len() < total {
			t.Fatalf("hearts evicted before float duration")
		}
		total = e.Len()
	}
	if total > 50 {
		t.Fatalf("spawned %d hearts, want <= 50", total)
	}
	if total != 50 {
		t.Fatalf("spawned %d hearts, want exactly 50", total)
	}
}

func TestHeartsWaveStagger(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	e := newEmitter(c)
	e.Emit(10) // 20 hearts, 5 per wave

	want := []int{5, 10, 15, 20}
	for i, w := range want {
		if e.Len() != w {
			t.Fatalf("after wave %d: %d hearts, want %d", i, e.Len(), w)
		}
		c.Advance(ms(200))
	}
	if e.PendingWaves() != 0 {
		t.Fatalf("pending waves = %d", e.PendingWaves())
	}
}

func TestHeartKinematicsInRange(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	e := newEmitter(c)
	e.Emit(1000)
	c.Advance(ms(600))

	seen := map[int64]bool{}
	var last int64
	for _, h := range e.Hearts() {
		if h.Angle < 0 || h.Angle >= 360 {
			t.Fatalf("angle %v out of range", h.Angle)
		}
		if h.Speed < 0.8 || h.Speed > 1.2 || h.Scale < 0.8 || h.Scale > 1.2 {
			t.Fatalf("speed/scale out of range: %+v", h)
		}
		if h.X < -20 || h.X > 20 || h.Y < -20 || h.Y > 20 {
			t.Fatalf("offset out of range: %+v", h)
		}
		if seen[h.ID] {
			t.Fatalf("duplicate id %d", h.ID)
		}
		if h.ID <= last {
			t.Fatalf("ids not increasing: %d after %d", h.ID, last)
		}
		seen[h.ID] = true
		last = h.ID
	}
}

func TestHeartsRemoveAndSweep(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	e := newEmitter(c)
	e.Emit(2) // 4 hearts, 1 per wave

	first := e.Hearts()[0]
	if !e.Remove(first.ID) {
		t.Fatalf("Remove(%d) = false", first.ID)
	}
	if e.Remove(first.ID) {
		t.Fatalf("second Remove succeeded")
	}

	c.Advance(ms(600)) // remaining three waves
	if e.Len() != 3 {
		t.Fatalf("hearts = %d, want 3", e.Len())
	}

	// Youngest heart was born at 600ms and floats until 2600ms.
	c.AdvanceTo(epoch.Add(ms(2599)))
	if e.Len() == 0 {
		t.Fatalf("all hearts swept early")
	}
	c.AdvanceTo(epoch.Add(ms(4000)))
	if e.Len() != 0 {
		t.Fatalf("hearts = %d after float duration, want 0", e.Len())
	}
	if c.Pending() != 0 {
		t.Fatalf("sweep kept rescheduling with no hearts: %d timers", c.Pending())
	}
}

func TestHeartsCloseCancelsWaves(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	e := newEmitter(c)
	e.Emit(25)
	spawned := e.Len()

	e.Close()
	e.Close()
	if c.Pending() != 0 {
		t.Fatalf("timers pending after Close: %d", c.Pending())
	}
	c.Advance(time.Second)
	if e.Len() != spawned {
		t.Fatalf("waves spawned after Close")
	}
	if e.Emit(25) != 0 {
		t.Fatalf("Emit after Close planned hearts")
	}
}

func TestHeartIDsUniqueWithinOneInstant(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	e := newEmitter(c)
	e.Emit(25)
	e.Emit(25) // same instant, second shake

	seen := map[int64]bool{}
	for _, h := range e.Hearts() {
		if seen[h.ID] {
			t.Fatalf("duplicate id %d", h.ID)
		}
		seen[h.ID] = true
	}
	if len(seen) != 26 {
		t.Fatalf("hearts = %d, want 26 (two first waves of 13)", len(seen))
	}
}
