package shake

import (
	"time"

	logx "shakethefrog/pkg/logx"
)

// Outcome says what the animation controller did with a signal.
type Outcome uint8

const (
	// Started: the signal began a new animation cycle.
	Started Outcome = iota + 1
	// Queued: the signal took the single pending slot.
	Queued
	// DroppedGrace: the current cycle started within the grace window.
	DroppedGrace
	// DroppedFull: the pending slot was already taken.
	DroppedFull
	// DroppedInvalid: intensity was not a positive number.
	DroppedInvalid
	// DroppedClosed: the controller was torn down.
	DroppedClosed
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Queued:
		return "queued"
	case DroppedGrace:
		return "dropped_grace"
	case DroppedFull:
		return "dropped_full"
	case DroppedInvalid:
		return "dropped_invalid"
	case DroppedClosed:
		return "dropped_closed"
	default:
		return "unknown"
	}
}

func (o Outcome) Dropped() bool { return o >= DroppedGrace }

type AnimationConfig struct {
	ResetDuration time.Duration
	GraceWindow   time.Duration
	RequeueDelay  time.Duration
}

func DefaultAnimationConfig() AnimationConfig {
	return AnimationConfig{
		ResetDuration: 600 * time.Millisecond,
		GraceWindow:   100 * time.Millisecond,
		RequeueDelay:  16 * time.Millisecond,
	}
}

func (c AnimationConfig) withDefaults() AnimationConfig {
	def := DefaultAnimationConfig()
	if c.ResetDuration <= 0 {
		c.ResetDuration = def.ResetDuration
	}
	if c.GraceWindow < 0 {
		c.GraceWindow = 0
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = def.RequeueDelay
	}
	return c
}

// AnimationState is the whole state of one animation controller.
type AnimationState struct {
	Animating  bool
	StartedAt  time.Time
	Intensity  float64
	Pending    float64
	HasPending bool
	// ShakeCount counts cycles that entered Animating. It never decreases.
	ShakeCount uint64
}

// ShakeEvent describes a cycle that just started.
type ShakeEvent struct {
	Intensity float64
	Count     uint64
	At        time.Time
	FromQueue bool
}

type animEventKind uint8

const (
	evSignal animEventKind = iota + 1
	evReset
)

type animEvent struct {
	kind      animEventKind
	intensity float64
	fromQueue bool
}

// animEffect is what the controller must do after a transition.
type animEffect struct {
	outcome Outcome
	started bool
	ended   bool
	requeue bool
	carry   float64
}

// apply is the single transition function of the animation state machine.
func (s AnimationState) apply(ev animEvent, now time.Time, cfg AnimationConfig) (AnimationState, animEffect) {
	switch ev.kind {
	case evSignal:
		if !(ev.intensity > 0) {
			return s, animEffect{outcome: DroppedInvalid}
		}
		if !s.Animating {
			s.Animating = true
			s.StartedAt = now
			s.Intensity = ev.intensity
			s.ShakeCount++
			return s, animEffect{outcome: Started, started: true}
		}
		if now.Sub(s.StartedAt) <= cfg.GraceWindow {
			return s, animEffect{outcome: DroppedGrace}
		}
		if s.HasPending {
			return s, animEffect{outcome: DroppedFull}
		}
		s.Pending, s.HasPending = ev.intensity, true
		return s, animEffect{outcome: Queued}

	case evReset:
		if !s.Animating {
			return s, animEffect{}
		}
		s.Animating = false
		s.Intensity = 0
		eff := animEffect{ended: true}
		if s.HasPending {
			eff.requeue, eff.carry = true, s.Pending
			s.Pending, s.HasPending = 0, false
		}
		return s, eff
	}
	return s, animEffect{}
}

// AnimationController runs the Idle/Animating machine on a Clock.
type AnimationController struct {
	clock Clock
	cfg   AnimationConfig
	log   logx.Logger

	state   AnimationState
	gen     uint64
	reset   Timer
	requeue Timer
	closed  bool

	onStart []func(ShakeEvent)
	onEnd   []func()
}

func NewAnimationController(clock Clock, cfg AnimationConfig, log logx.Logger) *AnimationController {
	return &AnimationController{clock: clock, cfg: cfg.withDefaults(), log: log}
}

// OnStart registers fn for every cycle start, fresh or from the queue.
func (c *AnimationController) OnStart(fn func(ShakeEvent)) { c.onStart = append(c.onStart, fn) }

// OnEnd registers fn for every return to Idle.
func (c *AnimationController) OnEnd(fn func()) { c.onEnd = append(c.onEnd, fn) }

func (c *AnimationController) State() AnimationState { return c.state }

// Apply swaps the tuning; running timers keep their original delays.
func (c *AnimationController) Apply(cfg AnimationConfig) { c.cfg = cfg.withDefaults() }

func (c *AnimationController) Signal(intensity float64) Outcome {
	return c.dispatch(animEvent{kind: evSignal, intensity: intensity})
}

func (c *AnimationController) dispatch(ev animEvent) Outcome {
	if c.closed {
		return DroppedClosed
	}
	now := c.clock.Now()
	next, eff := c.state.apply(ev, now, c.cfg)
	c.state = next

	if eff.started {
		c.gen++
		gen := c.gen
		stopTimer(c.reset)
		c.reset = c.clock.AfterFunc(c.cfg.ResetDuration, func() { c.fireReset(gen) })
		e := ShakeEvent{Intensity: next.Intensity, Count: next.ShakeCount, At: now, FromQueue: ev.fromQueue}
		for _, fn := range c.onStart {
			fn(e)
		}
	}
	if eff.ended {
		for _, fn := range c.onEnd {
			fn()
		}
	}
	if eff.requeue {
		carry := eff.carry
		stopTimer(c.requeue)
		c.requeue = c.clock.AfterFunc(c.cfg.RequeueDelay, func() {
			c.requeue = nil
			if out := c.dispatch(animEvent{kind: evSignal, intensity: carry, fromQueue: true}); out.Dropped() {
				c.log.Debug("queued shake dropped", logx.String("outcome", out.String()), logx.Float64("intensity", carry))
			}
		})
	}
	if eff.outcome != 0 {
		c.log.Trace("shake signal",
			logx.String("outcome", eff.outcome.String()),
			logx.Float64("intensity", ev.intensity),
			logx.Uint64("count", next.ShakeCount),
		)
	}
	return eff.outcome
}

func (c *AnimationController) fireReset(gen uint64) {
	if c.closed || gen != c.gen {
		return
	}
	c.reset = nil
	c.dispatch(animEvent{kind: evReset})
}

// Close cancels every outstanding timer. Later signals are dropped. Safe to call twice.
func (c *AnimationController) Close() {
	if c.closed {
		return
	}
	c.closed = true
	stopTimer(c.reset)
	stopTimer(c.requeue)
	c.reset, c.requeue = nil, nil
}
