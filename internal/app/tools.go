package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"

	"shakethefrog/internal/config"
	"shakethefrog/internal/i18n"
	"shakethefrog/internal/motion"
	"shakethefrog/internal/play"
	"shakethefrog/internal/replay"
	"shakethefrog/internal/shake"
	"shakethefrog/internal/skins"
	logx "shakethefrog/pkg/logx"
)

// Local is the config-derived state shared by the play, simulate and
// config check commands.
type Local struct {
	Config   *config.Config
	Catalogs *i18n.Bundle
	Skins    *skins.Registry
	Tuning   shake.Options
}

// LoadLocal reads and validates cfgPath. When optional is set a missing file
// yields the built-in defaults.
func LoadLocal(cfgPath string, optional bool, log logx.Logger) (*Local, error) {
	cfg, err := readConfig(cfgPath, optional)
	if err != nil {
		return nil, err
	}
	return buildLocal(cfg, log)
}

func readConfig(cfgPath string, optional bool) (*config.Config, error) {
	if cfgPath == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.NewConfigManager(cfgPath).Parse()
	if optional && errors.Is(err, fs.ErrNotExist) {
		return &config.Config{}, nil
	}
	return cfg, err
}

func buildLocal(cfg *config.Config, log logx.Logger) (*Local, error) {
	catalogs, err := i18n.New(i18n.Options{
		Default:     cfg.I18n.DefaultLanguage,
		OverrideDir: cfg.I18n.OverrideDir,
		Logger:      log.Component("i18n"),
	})
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg, catalogs.Supports); err != nil {
		return nil, err
	}
	tuning, err := mapShakeOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Shake.Seed != 0 {
		tuning.Rand = rand.New(rand.NewSource(cfg.Shake.Seed))
	}
	return &Local{
		Config:   cfg,
		Catalogs: catalogs,
		Skins:    skins.NewRegistry(cfg.Skins.Default, cfg.Skins.Variants),
		Tuning:   tuning,
	}, nil
}

// Play runs the terminal front-end. The terminal belongs to the screen, so
// logs go to the configured file only.
func Play(ctx context.Context, cfgPath string, optional bool) error {
	cfg, err := readConfig(cfgPath, optional)
	if err != nil {
		return err
	}
	log := logx.Nop()
	logCfg := mapLogging(cfg)
	logCfg.Console = false
	if logCfg.File.Enabled {
		logs, l := logx.New(logCfg)
		defer logs.Close()
		log = l.Component("play")
	}
	local, err := buildLocal(cfg, log)
	if err != nil {
		return err
	}

	mcfg, err := mapMotionConfig(cfg)
	if err != nil {
		return err
	}
	provider, err := motion.Open(mcfg, log.Component("motion"))
	if err != nil {
		return err
	}

	if cfg.I18n.Watch {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go local.Catalogs.Watch(wctx)
	}

	return play.Run(ctx, play.Options{
		Tuning:   local.Tuning,
		Catalogs: local.Catalogs,
		Skins:    local.Skins,
		Language: cfg.Play.Language,
		Skin:     cfg.Play.Skin,
		FPS:      cfg.Play.FPS,
		Sound:    cfg.Play.Sound,
		Motion:   provider,
		Logger:   log,
	})
}

// Simulate replays the script at scriptPath and writes the timeline to w as
// "text" or "json".
func Simulate(cfgPath string, optional bool, scriptPath, format string, w io.Writer) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}
	log := logx.NewConsole("warn").Component("simulate")
	local, err := LoadLocal(cfgPath, optional, log)
	if err != nil {
		return err
	}
	script, err := replay.Load(scriptPath)
	if err != nil {
		return err
	}
	tl, err := replay.Run(script, replay.Options{
		Tuning:   local.Tuning,
		Catalogs: local.Catalogs,
		Skins:    local.Skins,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tl)
	}
	return tl.WriteText(w)
}
