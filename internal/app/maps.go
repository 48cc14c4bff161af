package app

import (
	"fmt"
	"strings"
	"time"

	"shakethefrog/internal/config"
	"shakethefrog/internal/httpapi"
	"shakethefrog/internal/motion"
	"shakethefrog/internal/notifier"
	"shakethefrog/internal/payments"
	"shakethefrog/internal/shake"
	"shakethefrog/internal/storage"
	logx "shakethefrog/pkg/logx"
)

const (
	defaultPriceRefresh = "15m"
	defaultStoragePrune = "@daily"
	defaultRetention    = 30 * 24 * time.Hour
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapRetention(cfg *config.Config) (time.Duration, error) {
	if cfg == nil || cfg.Storage == nil {
		return defaultRetention, nil
	}
	return config.ParseDurationOrDefault("storage.retention", cfg.Storage.Retention, defaultRetention)
}

func mapServerConfig(cfg *config.Config, sec config.Secrets) (httpapi.Config, error) {
	s := cfg.Server
	var err error
	d := func(path, raw string, def time.Duration) time.Duration {
		if err != nil {
			return 0
		}
		var v time.Duration
		v, err = config.ParseDurationOrDefault(path, raw, def)
		return v
	}
	out := httpapi.Config{
		Addr:         s.Addr,
		ReadTimeout:  d("server.read_timeout", s.ReadTimeout, 10*time.Second),
		WriteTimeout: d("server.write_timeout", s.WriteTimeout, 15*time.Second),
		IdleTimeout:  d("server.idle_timeout", s.IdleTimeout, 60*time.Second),
		RateLimit: httpapi.RateLimit{
			PerSec:  s.RateLimit.PerSec,
			Burst:   s.RateLimit.Burst,
			IdleTTL: d("server.rate_limit.idle_ttl", s.RateLimit.IdleTTL, 5*time.Minute),
		},
		Pprof: httpapi.Pprof{
			Enabled:       s.Pprof.Enabled,
			Prefix:        s.Pprof.Prefix,
			Token:         sec.PprofToken,
			AllowInsecure: s.Pprof.AllowInsecure,
		},
		AppURL:        sec.AppURL,
		WebhookSecret: sec.LemonSqueezyWebhookSecret,
	}
	if err != nil {
		return httpapi.Config{}, err
	}
	if out.RateLimit.PerSec == 0 && out.RateLimit.Burst == 0 {
		out.RateLimit.PerSec, out.RateLimit.Burst = 5, 10
	}
	return out, nil
}

// mapShakeOptions converts the shake section. Omitted fields take the
// package defaults; an explicit "0s" is kept where zero is meaningful.
func mapShakeOptions(cfg *config.Config) (shake.Options, error) {
	sh := cfg.Shake
	def := shake.DefaultOptions()
	var errs []error
	d := func(path, raw string, fallback time.Duration) time.Duration {
		if strings.TrimSpace(raw) == "" {
			return fallback
		}
		v, err := config.ParseDurationField(path, raw)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	opts := shake.Options{
		Trigger: shake.TriggerConfig{
			Threshold:        sh.Trigger.Threshold,
			DebounceTime:     d("shake.trigger.debounce_time", sh.Trigger.DebounceTime, def.Trigger.DebounceTime),
			DefaultIntensity: sh.Trigger.DefaultIntensity,
			HapticPulse:      d("shake.trigger.haptic_pulse", sh.Trigger.HapticPulse, def.Trigger.HapticPulse),
		},
		Animation: shake.AnimationConfig{
			ResetDuration: d("shake.animation.reset_duration", sh.Animation.ResetDuration, def.Animation.ResetDuration),
			GraceWindow:   d("shake.animation.grace_window", sh.Animation.GraceWindow, def.Animation.GraceWindow),
			RequeueDelay:  d("shake.animation.requeue_delay", sh.Animation.RequeueDelay, def.Animation.RequeueDelay),
		},
		Messages: shake.MessageConfig{
			Visibility: d("shake.messages.visibility", sh.Messages.Visibility, def.Messages.Visibility),
			Cooldown:   d("shake.messages.cooldown", sh.Messages.Cooldown, def.Messages.Cooldown),
		},
		Hearts: shake.HeartsConfig{
			Waves:           sh.Hearts.Waves,
			WaveDelay:       d("shake.hearts.wave_delay", sh.Hearts.WaveDelay, def.Hearts.WaveDelay),
			MaxPerShake:     sh.Hearts.MaxPerShake,
			FloatDuration:   d("shake.hearts.float_duration", sh.Hearts.FloatDuration, def.Hearts.FloatDuration),
			CleanupInterval: d("shake.hearts.cleanup_interval", sh.Hearts.CleanupInterval, def.Hearts.CleanupInterval),
			MinSpeed:        sh.Hearts.MinSpeed,
			MaxSpeed:        sh.Hearts.MaxSpeed,
			MinScale:        sh.Hearts.MinScale,
			MaxScale:        sh.Hearts.MaxScale,
			SpreadX:         sh.Hearts.SpreadX,
			SpreadY:         sh.Hearts.SpreadY,
		},
	}
	if len(errs) > 0 {
		return shake.Options{}, errs[0]
	}
	return opts, nil
}

func mapNotifierConfig(cfg *config.Config, sec config.Secrets) (notifier.Config, error) {
	var n config.NotifierConfig
	if cfg.Notifier != nil {
		n = *cfg.Notifier
	} else {
		n.Enabled = true
	}
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	dedup, err := config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, 10*time.Minute)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:       n.Enabled && n.ChatID != 0 && strings.TrimSpace(sec.TelegramToken) != "",
		Workers:       n.Workers,
		QueueSize:     n.QueueSize,
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
		DedupWindow:   dedup,
	}, nil
}

func mapPaymentsConfig(cfg *config.Config, sec config.Secrets) (payments.Config, error) {
	timeout, err := config.ParseDurationOrDefault("payments.timeout", cfg.Payments.Timeout, payments.DefaultTimeout)
	if err != nil {
		return payments.Config{}, err
	}
	testMode := !sec.Production()
	if cfg.Payments.TestMode != nil {
		testMode = *cfg.Payments.TestMode
	}
	return payments.Config{
		APIBase:  cfg.Payments.APIBase,
		APIKey:   sec.LemonSqueezyAPIKey,
		StoreID:  sec.LemonSqueezyStoreID,
		Timeout:  timeout,
		TestMode: testMode,
	}, nil
}

func mapMotionConfig(cfg *config.Config) (motion.Config, error) {
	m := cfg.Play.Motion
	poll, err := config.ParseDurationOrDefault("play.motion.poll_interval", m.PollInterval, 20*time.Millisecond)
	if err != nil {
		return motion.Config{}, err
	}
	return motion.Config{Source: m.Source, Device: m.Device, FeedPath: m.FeedPath, PollInterval: poll}, nil
}
