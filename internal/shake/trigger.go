package shake

import (
	"context"
	"fmt"
	"math"
	"time"

	logx "shakethefrog/pkg/logx"
)

// Permission is the device-motion access state.
type Permission uint8

const (
	PermissionPrompt Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "prompt"
	}
}

// Acceleration is one accelerometer sample including gravity, in m/s².
type Acceleration struct {
	X, Y, Z float64
}

// Speed reduces a sample to |x|+|y|+|z|.
func (a Acceleration) Speed() float64 {
	return math.Abs(a.X) + math.Abs(a.Y) + math.Abs(a.Z)
}

// MotionProvider is a source of device motion.
type MotionProvider interface {
	// Supported reports whether the device can deliver motion at all.
	Supported() bool
}

// PermissionRequester is implemented by providers that gate access behind a
// permission request. Providers without it are granted immediately.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) (Permission, error)
}

// Haptics fires a short vibration. Failures are ignored.
type Haptics interface {
	Pulse(d time.Duration) error
}

// Sink receives shake signals; AnimationController is the production sink.
type Sink interface {
	Signal(intensity float64) Outcome
}

type TriggerConfig struct {
	Threshold        float64
	DebounceTime     time.Duration
	DefaultIntensity float64
	HapticPulse      time.Duration
}

func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Threshold:        20,
		DebounceTime:     100 * time.Millisecond,
		DefaultIntensity: 25,
		HapticPulse:      50 * time.Millisecond,
	}
}

func (c TriggerConfig) withDefaults() TriggerConfig {
	def := DefaultTriggerConfig()
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.DebounceTime < 0 {
		c.DebounceTime = 0
	}
	if c.DefaultIntensity <= 0 {
		c.DefaultIntensity = def.DefaultIntensity
	}
	if c.HapticPulse <= 0 {
		c.HapticPulse = def.HapticPulse
	}
	return c
}

// TriggerSource turns key presses, clicks and motion samples into signals.
type TriggerSource struct {
	clock   Clock
	cfg     TriggerConfig
	sink    Sink
	haptics Haptics
	log     logx.Logger

	permission Permission
	lastSample time.Time
	sampled    bool
}

func NewTriggerSource(clock Clock, cfg TriggerConfig, sink Sink, haptics Haptics, log logx.Logger) *TriggerSource {
	return &TriggerSource{clock: clock, cfg: cfg.withDefaults(), sink: sink, haptics: haptics, log: log}
}

func (t *TriggerSource) Apply(cfg TriggerConfig) { t.cfg = cfg.withDefaults() }

func (t *TriggerSource) Permission() Permission { return t.permission }

// SetPermission records the outcome of a permission request made elsewhere.
func (t *TriggerSource) SetPermission(p Permission) { t.permission = p }

// Activate handles the designated activate key.
func (t *TriggerSource) Activate() Outcome {
	return t.sink.Signal(t.cfg.DefaultIntensity)
}

// Click handles a pointer click: a default-intensity signal plus a haptic pulse.
func (t *TriggerSource) Click() Outcome {
	if t.haptics != nil {
		if err := t.haptics.Pulse(t.cfg.HapticPulse); err != nil {
			t.log.Trace("haptic pulse failed", logx.Err(err))
		}
	}
	return t.sink.Signal(t.cfg.DefaultIntensity)
}

// Motion handles one accelerometer sample. It returns 0 when the sample was
// ignored (no permission, debounced, or below threshold).
func (t *TriggerSource) Motion(a Acceleration) Outcome {
	if t.permission != PermissionGranted {
		return 0
	}
	now := t.clock.Now()
	if t.sampled && now.Sub(t.lastSample) < t.cfg.DebounceTime {
		return 0
	}
	t.sampled = true
	t.lastSample = now

	speed := a.Speed()
	if speed <= t.cfg.Threshold {
		return 0
	}
	return t.sink.Signal(speed)
}

// RequestMotionPermission negotiates motion access with provider and records
// the result. It never fails: every error ends in PermissionDenied.
func RequestMotionPermission(ctx context.Context, provider MotionProvider, log logx.Logger) (p Permission) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("motion permission request panicked", logx.String("panic", fmt.Sprint(r)))
			p = PermissionDenied
		}
	}()

	if provider == nil || !provider.Supported() {
		return PermissionDenied
	}
	req, ok := provider.(PermissionRequester)
	if !ok {
		return PermissionGranted
	}
	got, err := req.RequestPermission(ctx)
	if err != nil {
		log.Info("motion permission request failed", logx.Err(err))
		return PermissionDenied
	}
	switch got {
	case PermissionGranted, PermissionDenied, PermissionPrompt:
		return got
	default:
		return PermissionDenied
	}
}
