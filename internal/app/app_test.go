package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shakethefrog/internal/config"
	"shakethefrog/internal/shake"
)

func supportsAll(lang string) bool {
	switch lang {
	case "en", "de", "ru", "ka", "ar":
		return true
	}
	return false
}

func TestMapShakeOptions(t *testing.T) {
	t.Parallel()

	got, err := mapShakeOptions(&config.Config{})
	if err != nil {
		t.Fatalf("mapShakeOptions: %v", err)
	}
	def := shake.DefaultOptions()
	if got.Trigger.DebounceTime != def.Trigger.DebounceTime {
		t.Fatalf("debounce = %v, want %v", got.Trigger.DebounceTime, def.Trigger.DebounceTime)
	}
	if got.Animation.GraceWindow != def.Animation.GraceWindow {
		t.Fatalf("grace = %v, want %v", got.Animation.GraceWindow, def.Animation.GraceWindow)
	}
	if got.Messages.Cooldown != def.Messages.Cooldown {
		t.Fatalf("cooldown = %v, want %v", got.Messages.Cooldown, def.Messages.Cooldown)
	}

	cfg := &config.Config{}
	cfg.Shake.Animation.GraceWindow = "0s"
	cfg.Shake.Messages.Cooldown = "0s"
	cfg.Shake.Trigger.DebounceTime = "250ms"
	got, err = mapShakeOptions(cfg)
	if err != nil {
		t.Fatalf("mapShakeOptions: %v", err)
	}
	if got.Animation.GraceWindow != 0 || got.Messages.Cooldown != 0 {
		t.Fatalf("explicit zero not kept: grace=%v cooldown=%v", got.Animation.GraceWindow, got.Messages.Cooldown)
	}
	if got.Trigger.DebounceTime != 250*time.Millisecond {
		t.Fatalf("debounce = %v, want 250ms", got.Trigger.DebounceTime)
	}

	cfg.Shake.Hearts.WaveDelay = "later"
	if _, err := mapShakeOptions(cfg); err == nil || !strings.Contains(err.Error(), "shake.hearts.wave_delay") {
		t.Fatalf("err = %v, want wave_delay error", err)
	}
}

func TestMapServerConfig(t *testing.T) {
	t.Parallel()

	sec := config.Secrets{AppURL: "https://frog.test", LemonSqueezyWebhookSecret: "whsec", PprofToken: "tok"}
	got, err := mapServerConfig(&config.Config{}, sec)
	if err != nil {
		t.Fatalf("mapServerConfig: %v", err)
	}
	if got.RateLimit.PerSec != 5 || got.RateLimit.Burst != 10 {
		t.Fatalf("rate limit = %+v, want 5/10", got.RateLimit)
	}
	if got.ReadTimeout != 10*time.Second || got.RateLimit.IdleTTL != 5*time.Minute {
		t.Fatalf("timeouts = %v / %v", got.ReadTimeout, got.RateLimit.IdleTTL)
	}
	if got.AppURL != sec.AppURL || got.WebhookSecret != "whsec" || got.Pprof.Token != "tok" {
		t.Fatalf("secrets not mapped: %+v", got)
	}

	cfg := &config.Config{}
	cfg.Server.WriteTimeout = "fast"
	if _, err := mapServerConfig(cfg, sec); err == nil {
		t.Fatalf("mapServerConfig accepted bad duration")
	}
}

func TestMapNotifierConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   *config.NotifierConfig
		token string
		want  bool
	}{
		{"omitted without target", nil, "t", false},
		{"chat without token", &config.NotifierConfig{Enabled: true, ChatID: 42}, "", false},
		{"chat and token", &config.NotifierConfig{Enabled: true, ChatID: 42}, "t", true},
		{"disabled", &config.NotifierConfig{ChatID: 42}, "t", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := mapNotifierConfig(&config.Config{Notifier: tt.cfg}, config.Secrets{TelegramToken: tt.token})
			if err != nil {
				t.Fatalf("mapNotifierConfig: %v", err)
			}
			if got.Enabled != tt.want {
				t.Fatalf("Enabled = %v, want %v", got.Enabled, tt.want)
			}
			if got.DedupWindow != 10*time.Minute {
				t.Fatalf("DedupWindow = %v, want 10m", got.DedupWindow)
			}
		})
	}
}

func TestMapPaymentsTestMode(t *testing.T) {
	t.Parallel()

	got, err := mapPaymentsConfig(&config.Config{}, config.Secrets{Environment: "development"})
	if err != nil {
		t.Fatalf("mapPaymentsConfig: %v", err)
	}
	if !got.TestMode {
		t.Fatalf("TestMode = false outside production")
	}
	got, _ = mapPaymentsConfig(&config.Config{}, config.Secrets{Environment: "production"})
	if got.TestMode {
		t.Fatalf("TestMode = true in production")
	}
	off := false
	cfg := &config.Config{}
	cfg.Payments.TestMode = &off
	got, _ = mapPaymentsConfig(cfg, config.Secrets{})
	if got.TestMode {
		t.Fatalf("explicit test_mode=false ignored")
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	if _, on, err := mapStorageConfig(&config.Config{}); on || err != nil {
		t.Fatalf("nil storage: on=%v err=%v", on, err)
	}
	cfg := &config.Config{Storage: &config.StorageConfig{Driver: "sqlite3"}}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Fatalf("sqlite without path accepted")
	}
	cfg.Storage.Path = "frog.db"
	sc, on, err := mapStorageConfig(cfg)
	if err != nil || !on {
		t.Fatalf("sqlite: on=%v err=%v", on, err)
	}
	if sc.BusyTimeout != time.Second {
		t.Fatalf("BusyTimeout = %v, want 1s", sc.BusyTimeout)
	}
	if d, err := mapRetention(cfg); err != nil || d != defaultRetention {
		t.Fatalf("retention = %v, %v", d, err)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{"ok", func(c *config.Config) { c.Skins.Variants = map[string]string{"mandarin": "1"} }, ""},
		{"unknown default skin", func(c *config.Config) { c.Skins.Default = "toad" }, "skins.default"},
		{"free skin variant", func(c *config.Config) { c.Skins.Variants = map[string]string{"frog": "1"} }, "not premium"},
		{"unknown variant skin", func(c *config.Config) { c.Skins.Variants = map[string]string{"toad": "1"} }, "unknown skin"},
		{"play skin", func(c *config.Config) { c.Play.Skin = "toad" }, "play.skin"},
		{"default language", func(c *config.Config) { c.I18n.DefaultLanguage = "fr" }, "i18n.default_language"},
		{"play language", func(c *config.Config) { c.Play.Language = "fr" }, "play.language"},
		{"field format", func(c *config.Config) { c.Shake.Messages.Visibility = "long" }, "shake.messages.visibility"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{}
			tt.mutate(cfg)
			err := validateConfig(cfg, supportsAll)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("validateConfig: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("validateConfig err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestAppServesAndStops(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("LEMONSQUEEZY_API_KEY", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "server:\n  enabled: true\n  addr: 127.0.0.1:0\n" +
		"storage:\n  driver: file\n  path: " + filepath.Join(dir, "data") + "\n" +
		"jobs:\n  enabled: true\n  storage_prune: \"@every 1h\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	a, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	addr := a.http.Addr()
	if addr == "" {
		t.Fatalf("http server not listening")
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]any
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["status"] != "ok" || health["storage"] != true {
		t.Fatalf("health = %v", health)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopAppStop); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatalf("Done not closed after Stop")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewConfigManager(filepath.Join("..", "..", "config.example.yaml")).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := validateConfig(cfg, supportsAll); err != nil {
		t.Fatalf("validateConfig: %v", err)
	}
}
