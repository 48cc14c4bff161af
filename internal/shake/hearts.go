package shake

import (
	"math"
	"math/rand"
	"time"
)

type HeartsConfig struct {
	Waves           int
	WaveDelay       time.Duration
	MaxPerShake     int
	FloatDuration   time.Duration
	CleanupInterval time.Duration
	MinSpeed        float64
	MaxSpeed        float64
	MinScale        float64
	MaxScale        float64
	SpreadX         float64
	SpreadY         float64
}

func DefaultHeartsConfig() HeartsConfig {
	return HeartsConfig{
		Waves:           4,
		WaveDelay:       200 * time.Millisecond,
		MaxPerShake:     50,
		FloatDuration:   2 * time.Second,
		CleanupInterval: time.Second,
		MinSpeed:        0.8,
		MaxSpeed:        1.2,
		MinScale:        0.8,
		MaxScale:        1.2,
		SpreadX:         20,
		SpreadY:         20,
	}
}

func (c HeartsConfig) withDefaults() HeartsConfig {
	def := DefaultHeartsConfig()
	if c.Waves <= 0 {
		c.Waves = def.Waves
	}
	if c.WaveDelay < 0 {
		c.WaveDelay = 0
	}
	if c.MaxPerShake <= 0 {
		c.MaxPerShake = def.MaxPerShake
	}
	if c.FloatDuration <= 0 {
		c.FloatDuration = def.FloatDuration
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.MinSpeed <= 0 && c.MaxSpeed <= 0 {
		c.MinSpeed, c.MaxSpeed = def.MinSpeed, def.MaxSpeed
	}
	if c.MinScale <= 0 && c.MaxScale <= 0 {
		c.MinScale, c.MaxScale = def.MinScale, def.MaxScale
	}
	if c.MaxSpeed < c.MinSpeed {
		c.MaxSpeed = c.MinSpeed
	}
	if c.MaxScale < c.MinScale {
		c.MaxScale = c.MinScale
	}
	if c.SpreadX < 0 {
		c.SpreadX = -c.SpreadX
	}
	if c.SpreadY < 0 {
		c.SpreadY = -c.SpreadY
	}
	return c
}

// HeartCount is the number of hearts one shake of the given intensity spawns.
func HeartCount(intensity float64, maxPerShake int) int {
	if !(intensity > 0) {
		return 0
	}
	n := math.Floor(intensity * 2)
	if n > float64(maxPerShake) {
		return maxPerShake
	}
	return int(n)
}

// WaveSizes splits count over waves; earlier waves take the remainder, so
// the sizes always sum to count.
func WaveSizes(count, waves int) []int {
	if waves <= 0 || count <= 0 {
		return nil
	}
	sizes := make([]int, waves)
	base, rem := count/waves, count%waves
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}
	return sizes
}

// Heart is one floating particle.
type Heart struct {
	ID     int64
	Angle  float64 // degrees, [0, 360)
	Speed  float64
	X, Y   float64 // spawn offset from the center
	Scale  float64
	BornAt time.Time
}

// Age is how long the heart has been floating at now.
func (h Heart) Age(now time.Time) time.Duration { return now.Sub(h.BornAt) }

// HeartEmitter spawns waves of hearts per shake and forgets them once they
// finished floating.
type HeartEmitter struct {
	clock Clock
	cfg   HeartsConfig
	rnd   *rand.Rand

	hearts  []Heart
	lastID  int64
	waveSeq uint64
	waves   map[uint64]Timer
	sweep   Timer
	closed  bool
}

func NewHeartEmitter(clock Clock, cfg HeartsConfig, rnd *rand.Rand) *HeartEmitter {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &HeartEmitter{clock: clock, cfg: cfg.withDefaults(), rnd: rnd, waves: make(map[uint64]Timer)}
}

func (e *HeartEmitter) Apply(cfg HeartsConfig) { e.cfg = cfg.withDefaults() }

// Emit schedules the waves for one shake and returns the number of hearts planned.
func (e *HeartEmitter) Emit(intensity float64) int {
	if e.closed {
		return 0
	}
	count := HeartCount(intensity, e.cfg.MaxPerShake)
	if count == 0 {
		return 0
	}
	for i, n := range WaveSizes(count, e.cfg.Waves) {
		if n == 0 {
			continue
		}
		n := n
		if i == 0 {
			e.spawn(n)
			continue
		}
		e.waveSeq++
		seq := e.waveSeq
		e.waves[seq] = e.clock.AfterFunc(time.Duration(i)*e.cfg.WaveDelay, func() {
			delete(e.waves, seq)
			e.spawn(n)
		})
	}
	return count
}

func (e *HeartEmitter) spawn(n int) {
	if e.closed {
		return
	}
	now := e.clock.Now()
	for i := 0; i < n; i++ {
		e.hearts = append(e.hearts, Heart{
			ID:     e.nextID(now),
			Angle:  e.rnd.Float64() * 360,
			Speed:  between(e.rnd, e.cfg.MinSpeed, e.cfg.MaxSpeed),
			X:      between(e.rnd, -e.cfg.SpreadX, e.cfg.SpreadX),
			Y:      between(e.rnd, -e.cfg.SpreadY, e.cfg.SpreadY),
			Scale:  between(e.rnd, e.cfg.MinScale, e.cfg.MaxScale),
			BornAt: now,
		})
	}
	e.armSweep()
}

// nextID is time based and strictly increasing, even within one nanosecond.
func (e *HeartEmitter) nextID(now time.Time) int64 {
	id := now.UnixNano()
	if id <= e.lastID {
		id = e.lastID + 1
	}
	e.lastID = id
	return id
}

// Hearts returns a copy of the live hearts.
func (e *HeartEmitter) Hearts() []Heart {
	return append([]Heart(nil), e.hearts...)
}

func (e *HeartEmitter) Len() int { return len(e.hearts) }

// Remove drops a heart whose float animation completed.
func (e *HeartEmitter) Remove(id int64) bool {
	for i := range e.hearts {
		if e.hearts[i].ID == id {
			e.hearts = append(e.hearts[:i], e.hearts[i+1:]...)
			return true
		}
	}
	return false
}

// Sweep evicts hearts older than the float duration and returns how many it removed.
func (e *HeartEmitter) Sweep() int {
	now := e.clock.Now()
	kept := e.hearts[:0]
	for _, h := range e.hearts {
		if h.Age(now) < e.cfg.FloatDuration {
			kept = append(kept, h)
		}
	}
	removed := len(e.hearts) - len(kept)
	for i := len(kept); i < len(e.hearts); i++ {
		e.hearts[i] = Heart{}
	}
	e.hearts = kept
	return removed
}

func (e *HeartEmitter) armSweep() {
	if e.sweep != nil || e.closed {
		return
	}
	e.sweep = e.clock.AfterFunc(e.cfg.CleanupInterval, func() {
		e.sweep = nil
		if e.closed {
			return
		}
		e.Sweep()
		if len(e.hearts) > 0 {
			e.armSweep()
		}
	})
}

// PendingWaves is the number of waves scheduled but not yet spawned.
func (e *HeartEmitter) PendingWaves() int { return len(e.waves) }

// Close cancels pending waves and the sweep. Safe to call twice.
func (e *HeartEmitter) Close() {
	if e.closed {
		return
	}
	e.closed = true
	for _, t := range e.waves {
		t.Stop()
	}
	clear(e.waves)
	stopTimer(e.sweep)
	e.sweep = nil
}

func between(rnd *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rnd.Float64()*(hi-lo)
}
