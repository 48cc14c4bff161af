package shake

import (
	"container/heap"
	"time"
)

// VirtualClock is a deterministic Clock. Time moves only through Advance and
// AdvanceTo, and due callbacks run synchronously inside those calls ordered
// by due time, then by scheduling order.
type VirtualClock struct {
	now    time.Time
	seq    uint64
	timers timerHeap
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time { return c.now }

func (c *VirtualClock) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	c.seq++
	vt := &virtualTimer{clock: c, due: c.now.Add(d), seq: c.seq, fn: fn, index: -1}
	heap.Push(&c.timers, vt)
	return vt
}

// Advance moves time forward by d, firing every timer due on the way,
// including timers scheduled by those callbacks.
func (c *VirtualClock) Advance(d time.Duration) {
	c.AdvanceTo(c.now.Add(d))
}

// AdvanceTo moves time to t (never backwards).
func (c *VirtualClock) AdvanceTo(t time.Time) {
	for len(c.timers) > 0 {
		next := c.timers[0]
		if next.due.After(t) {
			break
		}
		heap.Pop(&c.timers)
		if next.due.After(c.now) {
			c.now = next.due
		}
		next.fired = true
		next.fn()
	}
	if t.After(c.now) {
		c.now = t
	}
}

// Pending reports how many timers are scheduled and not stopped.
func (c *VirtualClock) Pending() int { return len(c.timers) }

// NextDue returns the due time of the earliest pending timer.
func (c *VirtualClock) NextDue() (time.Time, bool) {
	if len(c.timers) == 0 {
		return time.Time{}, false
	}
	return c.timers[0].due, true
}

type virtualTimer struct {
	clock *VirtualClock
	due   time.Time
	seq   uint64
	fn    func()
	index int
	fired bool
}

func (t *virtualTimer) Stop() bool {
	if t.fired || t.index < 0 {
		return false
	}
	heap.Remove(&t.clock.timers, t.index)
	return true
}

type timerHeap []*virtualTimer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*virtualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
