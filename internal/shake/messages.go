package shake

import (
	"math/rand"
	"time"

	logx "shakethefrog/pkg/logx"
)

// Catalog supplies the phrases for the current language. It is read on every
// message generation, so a language switch applies to the next message.
type Catalog interface {
	Messages() []string
}

// CatalogFunc adapts a function to Catalog.
type CatalogFunc func() []string

func (f CatalogFunc) Messages() []string { return f() }

// StaticCatalog is a fixed phrase list.
type StaticCatalog []string

func (s StaticCatalog) Messages() []string { return s }

type MessageConfig struct {
	Visibility time.Duration
	Cooldown   time.Duration
}

func DefaultMessageConfig() MessageConfig {
	return MessageConfig{Visibility: 3 * time.Second, Cooldown: 2 * time.Second}
}

func (c MessageConfig) withDefaults() MessageConfig {
	def := DefaultMessageConfig()
	if c.Visibility <= 0 {
		c.Visibility = def.Visibility
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	return c
}

// MessageState is the rotator's full state.
type MessageState struct {
	Visible      bool
	Current      string
	Pending      []string
	LastShownAt  time.Time
	LastHiddenAt time.Time
	// LastCount is the last shake count observed.
	LastCount uint64
}

// cooledDown reports whether a message may be shown at now. A rotator that
// never hid a message is not cooling down.
func (s MessageState) cooledDown(now time.Time, cooldown time.Duration) bool {
	if s.LastHiddenAt.IsZero() {
		return true
	}
	return now.Sub(s.LastHiddenAt) >= cooldown
}

// MessageRotator shows one message at a time, with a cooldown between a hide
// and the next show. Messages generated meanwhile wait in an unbounded FIFO,
// already rendered.
type MessageRotator struct {
	clock   Clock
	cfg     MessageConfig
	catalog Catalog
	rnd     *rand.Rand
	emojis  []string
	log     logx.Logger

	state  MessageState
	hide   Timer
	drain  Timer
	closed bool

	onShow []func(string)
	onHide []func()
}

func NewMessageRotator(clock Clock, cfg MessageConfig, catalog Catalog, rnd *rand.Rand, log logx.Logger) *MessageRotator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if catalog == nil {
		catalog = StaticCatalog(nil)
	}
	return &MessageRotator{
		clock:   clock,
		cfg:     cfg.withDefaults(),
		catalog: catalog,
		rnd:     rnd,
		emojis:  Emojis,
		log:     log,
	}
}

func (r *MessageRotator) OnShow(fn func(string)) { r.onShow = append(r.onShow, fn) }
func (r *MessageRotator) OnHide(fn func())       { r.onHide = append(r.onHide, fn) }

func (r *MessageRotator) Apply(cfg MessageConfig) { r.cfg = cfg.withDefaults() }

// SetCatalog replaces the phrase source, e.g. on language change.
func (r *MessageRotator) SetCatalog(c Catalog) {
	if c == nil {
		c = StaticCatalog(nil)
	}
	r.catalog = c
}

// State returns a copy of the current state.
func (r *MessageRotator) State() MessageState {
	s := r.state
	s.Pending = append([]string(nil), r.state.Pending...)
	return s
}

// Observe feeds the latest shake count. Zero and already seen counts are
// ignored; every increase is one trigger.
func (r *MessageRotator) Observe(count uint64) {
	if r.closed || count == 0 || count <= r.state.LastCount {
		return
	}
	r.state.LastCount = count
	r.trigger()
}

func (r *MessageRotator) trigger() {
	now := r.clock.Now()
	msg, ok := r.render()
	if !ok {
		r.check(now)
		return
	}
	if !r.state.Visible && r.state.cooledDown(now, r.cfg.Cooldown) && len(r.state.Pending) == 0 {
		r.show(msg, now)
		return
	}
	r.state.Pending = append(r.state.Pending, msg)
	r.log.Trace("message queued", logx.Int("pending", len(r.state.Pending)))
	r.check(now)
}

// check shows the oldest queued message when allowed, otherwise makes sure a
// drain timer is armed for the end of the cooldown.
func (r *MessageRotator) check(now time.Time) {
	if r.closed || len(r.state.Pending) == 0 || r.state.Visible {
		return
	}
	if r.state.cooledDown(now, r.cfg.Cooldown) {
		next := r.state.Pending[0]
		r.state.Pending[0] = ""
		r.state.Pending = r.state.Pending[1:]
		r.show(next, now)
		return
	}
	if r.drain != nil {
		return
	}
	wait := r.state.LastHiddenAt.Add(r.cfg.Cooldown).Sub(now)
	r.drain = r.clock.AfterFunc(wait, func() {
		r.drain = nil
		r.check(r.clock.Now())
	})
}

func (r *MessageRotator) show(msg string, now time.Time) {
	stopTimer(r.drain)
	r.drain = nil
	r.state.Visible = true
	r.state.Current = msg
	r.state.LastShownAt = now
	stopTimer(r.hide)
	r.hide = r.clock.AfterFunc(r.cfg.Visibility, r.hideCurrent)
	for _, fn := range r.onShow {
		fn(msg)
	}
}

func (r *MessageRotator) hideCurrent() {
	if r.closed {
		return
	}
	r.hide = nil
	now := r.clock.Now()
	r.state.Visible = false
	r.state.Current = ""
	r.state.LastHiddenAt = now
	for _, fn := range r.onHide {
		fn()
	}
	r.check(now)
}

// render picks a phrase and an emoji. It reports false for an empty catalog.
func (r *MessageRotator) render() (string, bool) {
	msgs := r.catalog.Messages()
	if len(msgs) == 0 {
		return "", false
	}
	msg := msgs[r.rnd.Intn(len(msgs))]
	if len(r.emojis) > 0 {
		msg += " " + r.emojis[r.rnd.Intn(len(r.emojis))]
	}
	return msg, true
}

// Close cancels the hide and drain timers. Safe to call twice.
func (r *MessageRotator) Close() {
	if r.closed {
		return
	}
	r.closed = true
	stopTimer(r.hide)
	stopTimer(r.drain)
	r.hide, r.drain = nil, nil
}
