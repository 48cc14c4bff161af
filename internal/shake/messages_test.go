package shake

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	logx "shakethefrog/pkg/logx"
)

type shown struct {
	at  time.Duration
	msg string
}

func newRotator(c *VirtualClock, catalog Catalog) (*MessageRotator, *[]shown, *[]time.Duration) {
	r := NewMessageRotator(c, DefaultMessageConfig(), catalog, rand.New(rand.NewSource(7)), logx.Nop())
	var shows []shown
	var hides []time.Duration
	r.OnShow(func(m string) { shows = append(shows, shown{at: c.Now().Sub(epoch), msg: m}) })
	r.OnHide(func() { hides = append(hides, c.Now().Sub(epoch)) })
	return r, &shows, &hides
}

var phrases = StaticCatalog{"Wheee!", "Again!", "Ribbit!"}

func TestMessageCooldownQueue(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	r, shows, hides := newRotator(c, phrases)

	r.Observe(1)
	if len(*shows) != 1 || (*shows)[0].at != 0 {
		t.Fatalf("shows = %+v, want one at 0", *shows)
	}

	c.AdvanceTo(epoch.Add(ms(500)))
	r.Observe(2)
	if len(*shows) != 1 {
		t.Fatalf("second trigger shown while first visible")
	}
	if st := r.State(); len(st.Pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(st.Pending))
	}

	c.AdvanceTo(epoch.Add(ms(3000)))
	if len(*hides) != 1 || (*hides)[0] != ms(3000) {
		t.Fatalf("hides = %v, want [3s]", *hides)
	}
	if st := r.State(); st.Visible || st.LastHiddenAt != epoch.Add(ms(3000)) {
		t.Fatalf("state after hide = %+v", st)
	}

	c.AdvanceTo(epoch.Add(ms(4999)))
	if len(*shows) != 1 {
		t.Fatalf("queued message shown before cooldown ended")
	}
	c.AdvanceTo(epoch.Add(ms(5000)))
	if len(*shows) != 2 || (*shows)[1].at != ms(5000) {
		t.Fatalf("shows = %+v, want second at 5s", *shows)
	}
	if st := r.State(); len(st.Pending) != 0 || st.LastShownAt != epoch.Add(ms(5000)) {
		t.Fatalf("state = %+v", st)
	}
}

func TestMessageTriggerDuringCooldownEnqueues(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	r, shows, _ := newRotator(c, phrases)

	r.Observe(1)
	c.AdvanceTo(epoch.Add(ms(3500)))
	r.Observe(2)
	if len(*shows) != 1 {
		t.Fatalf("message shown during cooldown")
	}
	if st := r.State(); len(st.Pending) != 1 || st.Visible {
		t.Fatalf("state = %+v, want one queued and nothing visible", st)
	}
	c.AdvanceTo(epoch.Add(ms(5000)))
	if len(*shows) != 2 || (*shows)[1].at != ms(5000) {
		t.Fatalf("shows = %+v, want second at 5s", *shows)
	}
}

func TestMessageFreshShowAfterCooldown(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	r, shows, _ := newRotator(c, phrases)

	r.Observe(1)
	c.AdvanceTo(epoch.Add(ms(5000)))
	r.Observe(2)
	if len(*shows) != 2 || (*shows)[1].at != ms(5000) {
		t.Fatalf("shows = %+v, want immediate show at 5s", *shows)
	}
}

func TestMessageBacklogKeepsEnqueueOrder(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	r, shows, _ := newRotator(c, phrases)

	r.Observe(1)
	for i := uint64(2); i <= 4; i++ {
		c.Advance(ms(100))
		r.Observe(i)
	}
	queued := r.State().Pending
	if len(queued) != 3 {
		t.Fatalf("pending = %d, want 3", len(queued))
	}

	c.Advance(time.Minute)
	if len(*shows) != 4 {
		t.Fatalf("shows = %d, want 4", len(*shows))
	}
	for i, q := range queued {
		if got := (*shows)[i+1].msg; got != q {
			t.Fatalf("show %d = %q, want pre-rendered %q", i+1, got, q)
		}
	}
	// Visibility 3s + cooldown 2s between consecutive shows.
	for i := 1; i < len(*shows); i++ {
		if gap := (*shows)[i].at - (*shows)[i-1].at; gap != 5*time.Second {
			t.Fatalf("gap %d = %v, want 5s", i, gap)
		}
	}
}

func TestMessageRenderedWithEmoji(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	r, shows, _ := newRotator(c, StaticCatalog{"Ribbit!"})
	r.Observe(1)

	msg := (*shows)[0].msg
	if !strings.HasPrefix(msg, "Ribbit! ") {
		t.Fatalf("msg = %q", msg)
	}
	suffix := strings.TrimPrefix(msg, "Ribbit! ")
	found := false
	for _, e := range Emojis {
		if e == suffix {
			found = true
		}
	}
	if !found {
		t.Fatalf("suffix %q is not a known emoji", suffix)
	}
}

func TestMessageIgnoresZeroAndRepeatedCounts(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	r, shows, _ := newRotator(c, phrases)

	r.Observe(0)
	if len(*shows) != 0 {
		t.Fatalf("count 0 triggered a message")
	}
	r.Observe(3)
	r.Observe(3)
	r.Observe(2)
	if st := r.State(); len(*shows) != 1 || len(st.Pending) != 0 {
		t.Fatalf("repeated counts triggered: shows=%d pending=%d", len(*shows), len(st.Pending))
	}
}

func TestMessageEmptyCatalogIsSilent(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	var loaded []string
	r, shows, _ := newRotator(c, CatalogFunc(func() []string { return loaded }))

	r.Observe(1)
	c.Advance(ms(100))
	r.Observe(2)
	if len(*shows) != 0 || len(r.State().Pending) != 0 || c.Pending() != 0 {
		t.Fatalf("empty catalog produced output")
	}

	// Catalog resolves later; the next trigger uses it.
	loaded = []string{"Hallo!"}
	r.Observe(3)
	if len(*shows) != 1 || !strings.HasPrefix((*shows)[0].msg, "Hallo!") {
		t.Fatalf("shows = %+v", *shows)
	}
}

func TestMessageCloseCancelsTimers(t *testing.T) {
	t.Parallel()

	c := NewVirtualClock(epoch)
	r, shows, hides := newRotator(c, phrases)
	r.Observe(1)
	c.Advance(ms(200))
	r.Observe(2)

	r.Close()
	r.Close()
	if c.Pending() != 0 {
		t.Fatalf("timers pending after Close: %d", c.Pending())
	}
	c.Advance(time.Minute)
	r.Observe(3)
	if len(*shows) != 1 || len(*hides) != 0 {
		t.Fatalf("activity after Close: shows=%d hides=%d", len(*shows), len(*hides))
	}
}

func TestMessageSeededSelectionIsDeterministic(t *testing.T) {
	t.Parallel()

	run := func() []string {
		c := NewVirtualClock(epoch)
		r, shows, _ := newRotator(c, phrases)
		for i := uint64(1); i <= 5; i++ {
			r.Observe(i)
			c.Advance(6 * time.Second)
		}
		out := make([]string, 0, len(*shows))
		for _, s := range *shows {
			out = append(out, s.msg)
		}
		return out
	}
	a, b := run(), run()
	if strings.Join(a, "|") != strings.Join(b, "|") {
		t.Fatalf("same seed, different messages:\n%v\n%v", a, b)
	}
}
