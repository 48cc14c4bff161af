package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"shakethefrog/internal/jobs"
)

// Validate checks field formats. Cross-component checks (skin ids,
// languages) run in the app validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var errs []error
	dur := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	dur("server.read_timeout", cfg.Server.ReadTimeout)
	dur("server.write_timeout", cfg.Server.WriteTimeout)
	dur("server.idle_timeout", cfg.Server.IdleTimeout)
	dur("server.rate_limit.idle_ttl", cfg.Server.RateLimit.IdleTTL)
	if cfg.Server.RateLimit.PerSec < 0 || cfg.Server.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("server.rate_limit: values must be >= 0"))
	}
	if p := strings.TrimSpace(cfg.Server.Pprof.Prefix); p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("server.pprof.prefix: must start with '/'"))
	}

	sh := cfg.Shake
	dur("shake.trigger.debounce_time", sh.Trigger.DebounceTime)
	dur("shake.trigger.haptic_pulse", sh.Trigger.HapticPulse)
	dur("shake.animation.reset_duration", sh.Animation.ResetDuration)
	dur("shake.animation.grace_window", sh.Animation.GraceWindow)
	dur("shake.animation.requeue_delay", sh.Animation.RequeueDelay)
	dur("shake.messages.visibility", sh.Messages.Visibility)
	dur("shake.messages.cooldown", sh.Messages.Cooldown)
	dur("shake.hearts.wave_delay", sh.Hearts.WaveDelay)
	dur("shake.hearts.float_duration", sh.Hearts.FloatDuration)
	dur("shake.hearts.cleanup_interval", sh.Hearts.CleanupInterval)
	if sh.Trigger.Threshold < 0 || sh.Trigger.DefaultIntensity < 0 {
		errs = append(errs, errors.New("shake.trigger: threshold and default_intensity must be >= 0"))
	}
	if sh.Hearts.Waves < 0 || sh.Hearts.MaxPerShake < 0 {
		errs = append(errs, errors.New("shake.hearts: waves and max_per_shake must be >= 0"))
	}
	if sh.Hearts.MaxSpeed != 0 && sh.Hearts.MaxSpeed < sh.Hearts.MinSpeed {
		errs = append(errs, errors.New("shake.hearts: max_speed < min_speed"))
	}
	if sh.Hearts.MaxScale != 0 && sh.Hearts.MaxScale < sh.Hearts.MinScale {
		errs = append(errs, errors.New("shake.hearts: max_scale < min_scale"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Play.Motion.Source)) {
	case "", "auto", "iio", "feed", "none":
	default:
		errs = append(errs, fmt.Errorf("play.motion.source: unknown source %q", cfg.Play.Motion.Source))
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Play.Motion.Source), "feed") && strings.TrimSpace(cfg.Play.Motion.FeedPath) == "" {
		errs = append(errs, errors.New("play.motion.feed_path: required when source is feed"))
	}
	dur("play.motion.poll_interval", cfg.Play.Motion.PollInterval)
	if cfg.Play.FPS < 0 {
		errs = append(errs, errors.New("play.fps: must be >= 0"))
	}

	dur("payments.timeout", cfg.Payments.Timeout)

	if cfg.Jobs.Enabled {
		for path, raw := range map[string]string{"jobs.price_refresh": cfg.Jobs.PriceRefresh, "jobs.storage_prune": cfg.Jobs.StoragePrune} {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			if _, err := jobs.ParseSchedule(raw); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			}
		}
		if tz := strings.TrimSpace(cfg.Jobs.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				errs = append(errs, fmt.Errorf("jobs.timezone: %w", err))
			}
		}
	}

	if n := cfg.Notifier; n != nil {
		dur("notifier.retry_base", n.RetryBase)
		dur("notifier.retry_max_delay", n.RetryMaxDelay)
		dur("notifier.dedup_window", n.DedupWindow)
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
			errs = append(errs, errors.New("notifier: counts must be >= 0"))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		dur("storage.busy_timeout", s.BusyTimeout)
		dur("storage.retention", s.Retention)
	}

	return errors.Join(errs...)
}
