package config

import (
	"reflect"
	"sort"
	"strings"

	logx "shakethefrog/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured fields describing them. Secrets are never part of Config, and
// identifiers like chat ids are reduced to "set" flags.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Server, newCfg.Server) {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.Bool("server.enabled", newCfg.Server.Enabled),
			logx.String("server.addr", strings.TrimSpace(newCfg.Server.Addr)),
			logx.Bool("server.pprof", newCfg.Server.Pprof.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Shake, newCfg.Shake) {
		changed = append(changed, "shake")
		attrs = append(attrs,
			logx.Float64("shake.threshold", newCfg.Shake.Trigger.Threshold),
			logx.String("shake.reset_duration", newCfg.Shake.Animation.ResetDuration),
		)
	}
	if !reflect.DeepEqual(oldCfg.Play, newCfg.Play) {
		changed = append(changed, "play")
	}
	if !reflect.DeepEqual(oldCfg.Skins, newCfg.Skins) {
		changed = append(changed, "skins")
		attrs = append(attrs,
			logx.String("skins.default", newCfg.Skins.Default),
			logx.Int("skins.variants", len(newCfg.Skins.Variants)),
		)
	}
	if !reflect.DeepEqual(oldCfg.I18n, newCfg.I18n) {
		changed = append(changed, "i18n")
		attrs = append(attrs,
			logx.String("i18n.default_language", newCfg.I18n.DefaultLanguage),
			logx.Bool("i18n.override_dir_set", strings.TrimSpace(newCfg.I18n.OverrideDir) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Payments, newCfg.Payments) {
		changed = append(changed, "payments")
		attrs = append(attrs,
			logx.Bool("payments.enabled", newCfg.Payments.Enabled),
			logx.String("payments.api_base", newCfg.Payments.APIBase),
		)
	}
	if !reflect.DeepEqual(oldCfg.Jobs, newCfg.Jobs) {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Bool("jobs.enabled", newCfg.Jobs.Enabled),
			logx.String("jobs.price_refresh", newCfg.Jobs.PriceRefresh),
			logx.String("jobs.storage_prune", newCfg.Jobs.StoragePrune),
		)
	}
	if !reflect.DeepEqual(derefNotifier(oldCfg.Notifier), derefNotifier(newCfg.Notifier)) {
		changed = append(changed, "notifier")
		n := derefNotifier(newCfg.Notifier)
		attrs = append(attrs,
			logx.Bool("notifier.enabled", n.Enabled),
			logx.Bool("notifier.chat_set", n.ChatID != 0),
			logx.Int("notifier.workers", n.Workers),
			logx.Int("notifier.rate_per_sec", n.RatePerSec),
		)
	}

	var oDriver, nDriver string
	var oPathSet, nPathSet bool
	if s := oldCfg.Storage; s != nil {
		oDriver, oPathSet = strings.TrimSpace(s.Driver), strings.TrimSpace(s.Path) != ""
	}
	if s := newCfg.Storage; s != nil {
		nDriver, nPathSet = strings.TrimSpace(s.Driver), strings.TrimSpace(s.Path) != ""
	}
	if oDriver != nDriver || oPathSet != nPathSet || !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefNotifier(n *NotifierConfig) NotifierConfig {
	if n == nil {
		return NotifierConfig{Enabled: true}
	}
	return *n
}
