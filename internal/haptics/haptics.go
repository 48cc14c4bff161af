// Package haptics stands in for device vibration on a terminal: a short
// sine tone through the speaker, or the terminal bell when audio is off.
package haptics

import (
	"errors"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	logx "shakethefrog/pkg/logx"
)

const (
	sampleRate = beep.SampleRate(44100)
	toneHz     = 180
	maxPulse   = time.Second
)

var ErrUnavailable = errors.New("haptics unavailable")

type Config struct {
	// Sound enables the speaker. Without it every pulse rings the bell.
	Sound bool
	// Bell is the fallback; nil makes pulses without sound a no-op error.
	Bell func() error
}

// Pulser implements shake.Haptics.
type Pulser struct {
	cfg Config
	log logx.Logger

	initOnce sync.Once
	initErr  error
	started  bool
}

func New(cfg Config, log logx.Logger) *Pulser {
	return &Pulser{cfg: cfg, log: log}
}

func (p *Pulser) speaker() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(sampleRate, sampleRate.N(time.Second/20))
		if p.initErr != nil {
			p.log.Info("audio unavailable; falling back to bell", logx.Err(p.initErr))
			return
		}
		p.started = true
	})
	return p.initErr
}

// Pulse plays a tone of length d, clamped to one second.
func (p *Pulser) Pulse(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	d = min(d, maxPulse)
	if p.cfg.Sound && p.speaker() == nil {
		tone, err := generators.SineTone(sampleRate, toneHz)
		if err != nil {
			return err
		}
		speaker.Play(beep.Take(sampleRate.N(d), tone))
		return nil
	}
	if p.cfg.Bell != nil {
		return p.cfg.Bell()
	}
	return ErrUnavailable
}

// Close silences anything still playing.
func (p *Pulser) Close() {
	if p.started {
		speaker.Clear()
	}
}
