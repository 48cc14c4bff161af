package shake

import (
	"math/rand"
	"time"

	logx "shakethefrog/pkg/logx"
)

// Options configures a Session. Zero tuning values take the defaults.
type Options struct {
	Trigger   TriggerConfig
	Animation AnimationConfig
	Messages  MessageConfig
	Hearts    HeartsConfig

	Catalog Catalog
	Haptics Haptics
	// Rand drives message and heart randomness; nil seeds from the clock.
	Rand   *rand.Rand
	Logger logx.Logger
}

func DefaultOptions() Options {
	return Options{
		Trigger:   DefaultTriggerConfig(),
		Animation: DefaultAnimationConfig(),
		Messages:  DefaultMessageConfig(),
		Hearts:    DefaultHeartsConfig(),
	}
}

// Session wires one mounted view: trigger -> animation -> hearts and messages.
type Session struct {
	clock Clock

	Trigger   *TriggerSource
	Animation *AnimationController
	Messages  *MessageRotator
	Hearts    *HeartEmitter

	closed bool
}

func NewSession(clock Clock, opts Options) *Session {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}
	log := opts.Logger

	anim := NewAnimationController(clock, opts.Animation, log.Component("shake.animation"))
	msgs := NewMessageRotator(clock, opts.Messages, opts.Catalog, rnd, log.Component("shake.messages"))
	hearts := NewHeartEmitter(clock, opts.Hearts, rnd)
	trig := NewTriggerSource(clock, opts.Trigger, anim, opts.Haptics, log.Component("shake.trigger"))

	anim.OnStart(func(e ShakeEvent) {
		hearts.Emit(e.Intensity)
		msgs.Observe(e.Count)
	})

	return &Session{clock: clock, Trigger: trig, Animation: anim, Messages: msgs, Hearts: hearts}
}

// Apply swaps tuning on every component. Catalog, haptics and randomness stay.
func (s *Session) Apply(opts Options) {
	s.Trigger.Apply(opts.Trigger)
	s.Animation.Apply(opts.Animation)
	s.Messages.Apply(opts.Messages)
	s.Hearts.Apply(opts.Hearts)
}

// Snapshot is a render-ready view of a session.
type Snapshot struct {
	Now            time.Time
	Shaking        bool
	Intensity      float64
	ShakeCount     uint64
	CatchUpQueued  bool
	Message        string
	MessageVisible bool
	QueuedMessages int
	Hearts         []Heart
	Permission     Permission
}

func (s *Session) Snapshot() Snapshot {
	a := s.Animation.State()
	m := s.Messages.state
	return Snapshot{
		Now:            s.clock.Now(),
		Shaking:        a.Animating,
		Intensity:      a.Intensity,
		ShakeCount:     a.ShakeCount,
		CatchUpQueued:  a.HasPending,
		Message:        m.Current,
		MessageVisible: m.Visible,
		QueuedMessages: len(m.Pending),
		Hearts:         s.Hearts.Hearts(),
		Permission:     s.Trigger.Permission(),
	}
}

// Close tears down every timer the session owns. Safe to call twice.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.Animation.Close()
	s.Messages.Close()
	s.Hearts.Close()
}
