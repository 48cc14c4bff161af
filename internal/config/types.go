package config

// Config is the file-backed configuration (YAML or JSON).
//
// All durations are Go duration strings (e.g. "100ms", "2s", "15m").
// Secrets never live here; see Secrets.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Server  ServerConfig  `json:"server"`
	Shake   ShakeConfig   `json:"shake"`
	Play    PlayConfig    `json:"play"`
	Skins   SkinsConfig   `json:"skins"`
	I18n    I18nConfig    `json:"i18n"`

	Payments PaymentsConfig `json:"payments"`
	Jobs     JobsConfig     `json:"jobs"`

	// Optional sections: nil means disabled (storage) or defaults (notifier).
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ServerConfig controls the HTTP API.
//
// Defaults:
//   - addr: "127.0.0.1:8080"
//   - read_timeout: "10s", write_timeout: "15s", idle_timeout: "60s"
//   - rate_limit: 5 req/s, burst 10 (checkout + webhook endpoints)
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	RateLimit RateLimitConfig `json:"rate_limit"`
	Pprof     PprofConfig     `json:"pprof"`
}

type RateLimitConfig struct {
	PerSec float64 `json:"per_sec,omitempty"`
	Burst  int     `json:"burst,omitempty"`
	// Idle clients are forgotten after this long (default "5m").
	IdleTTL string `json:"idle_ttl,omitempty"`
}

// PprofConfig mounts net/http/pprof on the API server.
//
// The token comes from SHAKETHEFROG_PPROF_TOKEN. Without a token the server
// must listen on loopback unless allow_insecure is set.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// ShakeConfig tunes the shake state machines. Zero values take the defaults
// documented on each field.
type ShakeConfig struct {
	Trigger   TriggerConfig   `json:"trigger"`
	Animation AnimationConfig `json:"animation"`
	Messages  MessagesConfig  `json:"messages"`
	Hearts    HeartsConfig    `json:"hearts"`

	// Seed for message and heart randomness. 0 seeds from the clock.
	Seed int64 `json:"seed,omitempty"`
}

type TriggerConfig struct {
	Threshold        float64 `json:"threshold,omitempty"`         // default 20
	DebounceTime     string  `json:"debounce_time,omitempty"`     // default "100ms"
	DefaultIntensity float64 `json:"default_intensity,omitempty"` // default 25
	HapticPulse      string  `json:"haptic_pulse,omitempty"`      // default "50ms"
}

type AnimationConfig struct {
	ResetDuration string `json:"reset_duration,omitempty"` // default "600ms"
	GraceWindow   string `json:"grace_window,omitempty"`   // default "100ms"
	RequeueDelay  string `json:"requeue_delay,omitempty"`  // default "16ms"
}

type MessagesConfig struct {
	Visibility string `json:"visibility,omitempty"` // default "3s"
	Cooldown   string `json:"cooldown,omitempty"`   // default "2s"
}

type HeartsConfig struct {
	Waves           int     `json:"waves,omitempty"`            // default 4
	WaveDelay       string  `json:"wave_delay,omitempty"`       // default "200ms"
	MaxPerShake     int     `json:"max_per_shake,omitempty"`    // default 50
	FloatDuration   string  `json:"float_duration,omitempty"`   // default "2s"
	CleanupInterval string  `json:"cleanup_interval,omitempty"` // default "1s"
	MinSpeed        float64 `json:"min_speed,omitempty"`        // default 0.8
	MaxSpeed        float64 `json:"max_speed,omitempty"`        // default 1.2
	MinScale        float64 `json:"min_scale,omitempty"`        // default 0.8
	MaxScale        float64 `json:"max_scale,omitempty"`        // default 1.2
	SpreadX         float64 `json:"spread_x,omitempty"`         // default 20
	SpreadY         float64 `json:"spread_y,omitempty"`         // default 20
}

// PlayConfig controls the terminal front-end.
type PlayConfig struct {
	Language string `json:"language,omitempty"` // default: i18n.default_language
	Skin     string `json:"skin,omitempty"`     // default: skins.default
	FPS      int    `json:"fps,omitempty"`      // default 30
	Sound    bool   `json:"sound"`

	Motion MotionConfig `json:"motion"`
}

// MotionConfig selects the device-motion provider.
//
// source: "auto" (IIO accelerometer when present), "iio", "feed" (JSON lines
// from a file or FIFO), or "none".
type MotionConfig struct {
	Source       string `json:"source,omitempty"`
	Device       string `json:"device,omitempty"` // IIO device dir; default: first with in_accel_x_raw
	FeedPath     string `json:"feed_path,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"` // default "20ms"
}

// SkinsConfig binds premium skins to payment variants.
//
// Example:
//
//	skins: { default: frog, variants: { mandarin: "123456" } }
type SkinsConfig struct {
	Default  string            `json:"default,omitempty"`
	Variants map[string]string `json:"variants,omitempty"`
}

type I18nConfig struct {
	DefaultLanguage string `json:"default_language,omitempty"` // default "en"
	// OverrideDir holds *.yaml catalog files (each naming its locale and
	// namespace) merged over the embedded catalogs.
	OverrideDir string `json:"override_dir,omitempty"`
	Watch       bool   `json:"watch,omitempty"`
}

// PaymentsConfig configures the hosted checkout provider. Credentials come
// from the environment (LEMONSQUEEZY_*).
type PaymentsConfig struct {
	Enabled bool   `json:"enabled"`
	APIBase string `json:"api_base,omitempty"` // default "https://api.lemonsqueezy.com/v1"
	Timeout string `json:"timeout,omitempty"`  // default "10s"
	// TestMode forces provider test mode. When omitted it follows SHAKETHEFROG_ENV != "production".
	TestMode *bool `json:"test_mode,omitempty"`
}

// JobsConfig controls cron jobs. Schedules accept cron expressions (optional
// seconds field), descriptors (@hourly) and "every <duration>".
type JobsConfig struct {
	Enabled      bool   `json:"enabled"`
	Timezone     string `json:"timezone,omitempty"`
	PriceRefresh string `json:"price_refresh,omitempty"` // default "15m"
	StoragePrune string `json:"storage_prune,omitempty"` // default "@daily"
}

// NotifierConfig controls async purchase notifications.
//
// If the section is omitted the notifier runs with defaults, and only sends
// when a Telegram token and chat_id are present.
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	ChatID        int64  `json:"chat_id,omitempty"`
	ThreadID      int    `json:"thread_id,omitempty"`
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	DedupWindow   string `json:"dedup_window,omitempty"`
}

// StorageConfig controls persistence of purchases and webhook deliveries.
//
// Example:
//
//	storage: { driver: sqlite, path: ./data/shakethefrog.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	// Retention bounds how long webhook delivery records are kept (default "720h").
	Retention string `json:"retention,omitempty"`
}
