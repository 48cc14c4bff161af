package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Secrets are read from the environment only, never from the config file.
type Secrets struct {
	Environment string `env:"SHAKETHEFROG_ENV" envDefault:"development"`
	AppURL      string `env:"APP_URL" envDefault:"http://localhost:8080"`

	LemonSqueezyAPIKey        string `env:"LEMONSQUEEZY_API_KEY"`
	LemonSqueezyStoreID       string `env:"LEMONSQUEEZY_STORE_ID"`
	LemonSqueezyWebhookSecret string `env:"LEMONSQUEEZY_WEBHOOK_SECRET"`

	TelegramToken string `env:"TELEGRAM_TOKEN"`
	PprofToken    string `env:"SHAKETHEFROG_PPROF_TOKEN"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadSecrets() (Secrets, error) {
	var s Secrets
	if err := ParseEnv(&s); err != nil {
		return Secrets{}, err
	}
	s.AppURL = strings.TrimRight(strings.TrimSpace(s.AppURL), "/")
	return s, nil
}

func (s Secrets) Production() bool {
	return strings.EqualFold(strings.TrimSpace(s.Environment), "production")
}
