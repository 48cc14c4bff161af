package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"shakethefrog/internal/config"
	"shakethefrog/internal/eventbus"
	"shakethefrog/internal/httpapi"
	"shakethefrog/internal/i18n"
	"shakethefrog/internal/jobs"
	"shakethefrog/internal/notifier"
	"shakethefrog/internal/payments"
	"shakethefrog/internal/purchases"
	"shakethefrog/internal/runtime/supervisor"
	"shakethefrog/internal/skins"
	"shakethefrog/internal/storage"
	kit "shakethefrog/internal/transport"
	"shakethefrog/internal/transport/telegram"
	logx "shakethefrog/pkg/logx"
)

const (
	jobPriceRefresh = "prices.refresh"
	jobStoragePrune = "storage.prune"
)

// App wires the serve mode: HTTP API, webhook processing, purchase
// notifications and cron jobs.
type App struct {
	cfgm    *config.ConfigManager
	secrets config.Secrets
	sup     *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store     storage.Store
	retention time.Duration

	skins    *skins.Registry
	catalogs *i18n.Bundle
	prices   *payments.PriceTable
	notif    *notifier.Service
	sched    *jobs.Scheduler
	http     *httpapi.Server

	httpOn bool

	followMu     sync.Mutex
	followTarget kit.Target
	followCancel context.CancelFunc
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	sec, err := config.LoadSecrets()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	appLog := log.With(logx.String("comp", "app"))

	catalogs, err := i18n.New(i18n.Options{
		Default:     cfg.I18n.DefaultLanguage,
		OverrideDir: cfg.I18n.OverrideDir,
		Logger:      log.With(logx.String("comp", "i18n")),
	})
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if err := validateConfig(cfg, catalogs.Supports); err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	a := &App{
		cfgm:     cfgm,
		secrets:  sec,
		log:      appLog,
		logs:     logSvc,
		bus:      eventbus.New(),
		skins:    skins.NewRegistry(cfg.Skins.Default, cfg.Skins.Variants),
		catalogs: catalogs,
	}
	if err := a.build(cfg, log); err != nil {
		if a.store != nil {
			_ = a.store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config, log logx.Logger) error {
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}
	retention, err := mapRetention(cfg)
	if err != nil {
		return err
	}
	a.retention = retention

	var checkouts httpapi.Checkouts
	if cfg.Payments.Enabled {
		pcfg, err := mapPaymentsConfig(cfg, a.secrets)
		if err != nil {
			return err
		}
		client, err := payments.NewClient(pcfg)
		switch {
		case errors.Is(err, payments.ErrNotConfigured):
			a.log.Warn("payments enabled but credentials missing; checkout disabled")
		case err != nil:
			return err
		default:
			checkouts = client
			a.prices = payments.NewPriceTable(client, cfg.Skins.Variants)
		}
	}

	dispatcher := payments.NewDispatcher(log.With(logx.String("comp", "webhooks")))
	purchases.NewRecorder(a.store, a.bus, log.With(logx.String("comp", "purchases"))).Register(dispatcher)

	ncfg, err := mapNotifierConfig(cfg, a.secrets)
	if err != nil {
		return err
	}
	var sender kit.Sender
	if tok := strings.TrimSpace(a.secrets.TelegramToken); tok != "" {
		tg, err := telegram.New(telegram.Config{Token: tok}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return err
		}
		sender = tg
	}
	a.notif = notifier.New(ncfg, sender, log.With(logx.String("comp", "notifier")), a.bus, a.store)

	if cfg.Jobs.Enabled {
		if err := a.buildJobs(cfg, log); err != nil {
			return err
		}
	}

	scfg, err := mapServerConfig(cfg, a.secrets)
	if err != nil {
		return err
	}
	deps := httpapi.Deps{
		Skins:      a.skins,
		Catalogs:   a.catalogs,
		Checkouts:  checkouts,
		Dispatcher: dispatcher,
		Store:      a.store,
		Bus:        a.bus,
		Health:     a.health,
	}
	if a.prices != nil {
		deps.Prices = a.prices
	}
	a.http = httpapi.New(scfg, deps, log.With(logx.String("comp", "http")))
	return nil
}

func (a *App) buildJobs(cfg *config.Config, log logx.Logger) error {
	sched, err := jobs.New(cfg.Jobs.Timezone, log.With(logx.String("comp", "jobs")))
	if err != nil {
		return err
	}
	if a.prices != nil {
		spec := orDefault(cfg.Jobs.PriceRefresh, defaultPriceRefresh)
		if err := sched.Add(jobPriceRefresh, spec, 30*time.Second, a.refreshPrices); err != nil {
			return err
		}
	}
	if a.store != nil {
		spec := orDefault(cfg.Jobs.StoragePrune, defaultStoragePrune)
		if err := sched.Add(jobStoragePrune, spec, time.Minute, a.pruneStorage); err != nil {
			return err
		}
	}
	a.sched = sched
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (a *App) refreshPrices(ctx context.Context) error {
	if a.prices == nil {
		return nil
	}
	err := a.prices.Refresh(ctx)
	ev := eventbus.PricesEvent{Prices: a.prices.Prices()}
	if err != nil {
		ev.Error = err.Error()
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypePricesRefreshed, Data: ev})
	return err
}

func (a *App) pruneStorage(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	n, err := a.store.Prune(ctx, time.Now().Add(-a.retention))
	if err != nil {
		return fmt.Errorf("prune storage: %w", err)
	}
	if n > 0 {
		a.log.Info("storage pruned", logx.Int("records", n))
	}
	return nil
}

func (a *App) health() map[string]any {
	out := map[string]any{
		"storage":  a.store != nil,
		"notifier": a.notif.Enabled(),
	}
	if a.prices != nil {
		if at := a.prices.RefreshedAt(); !at.IsZero() {
			out["prices_refreshed_at"] = at.UTC().Format(time.RFC3339)
		}
	}
	if a.sched != nil {
		out["jobs"] = a.sched.Snapshot()
	}
	if a.sup != nil {
		out["goroutines"] = a.sup.Snapshot()
	}
	return out
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	c := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := validateConfig(cfg, a.catalogs.Supports); err != nil {
			return err
		}
		if _, err := mapServerConfig(cfg, a.secrets); err != nil {
			return err
		}
		_, err := mapNotifierConfig(cfg, a.secrets)
		return err
	})

	cfg := a.cfgm.Get()
	if cfg.I18n.Watch {
		a.sup.Go0("i18n.watch", a.catalogs.Watch)
	}

	a.notif.Start(c)
	a.follow(c, notifyTarget(cfg))

	if a.prices != nil {
		a.sup.Go0("prices.warmup", func(c context.Context) {
			if err := a.refreshPrices(c); err != nil {
				a.log.Warn("initial price refresh failed", logx.Err(err))
			}
		})
	}
	if a.sched != nil {
		if err := a.sched.Start(c); err != nil {
			return err
		}
	}

	if cfg.Server.Enabled {
		if err := a.http.Start(c); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		a.httpOn = true
	} else {
		a.log.Info("http server disabled by config")
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				sdNotify(a.log, "RELOADING=1")
				a.applyConfig(c, last, newCfg)
				last = newCfg
				sdNotify(a.log, "READY=1")
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	sdNotify(a.log, "READY=1")
	a.log.Info("app started")
	return nil
}

// restartSections cannot be applied to a running app.
var restartSections = map[string]bool{
	"storage":  true,
	"payments": true,
	"jobs":     true,
	"skins":    true,
	"i18n":     true,
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if restartSections[s] {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLogging(newCfg))

	if ncfg, err := mapNotifierConfig(newCfg, a.secrets); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		prev := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch {
		case prev && !a.notif.Enabled():
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !prev && a.notif.Enabled():
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
		a.follow(ctx, notifyTarget(newCfg))
	}

	if scfg, err := mapServerConfig(newCfg, a.secrets); err != nil {
		a.log.Warn("invalid server config; keeping previous", logx.Err(err))
	} else {
		a.applyServer(ctx, newCfg.Server.Enabled, scfg)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: sections})
}

func (a *App) applyServer(ctx context.Context, enabled bool, scfg httpapi.Config) {
	switch {
	case a.httpOn && !enabled:
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.http.Stop(stopCtx)
		cancel()
		a.httpOn = false
		a.log.Info("http server disabled via config")
	case !a.httpOn && enabled:
		if err := a.http.Reconfigure(ctx, scfg); err != nil {
			a.log.Warn("http reconfigure failed", logx.Err(err))
		}
		if err := a.http.Start(ctx); err != nil {
			a.log.Error("http server start failed", logx.Err(err))
			return
		}
		a.httpOn = true
	case enabled:
		if err := a.http.Reconfigure(ctx, scfg); err != nil {
			a.log.Error("http reconfigure failed", logx.Err(err))
		}
	}
}

func notifyTarget(cfg *config.Config) kit.Target {
	if cfg.Notifier == nil {
		return kit.Target{}
	}
	return kit.Target{ChatID: cfg.Notifier.ChatID, ThreadID: cfg.Notifier.ThreadID}
}

// follow (re)starts the purchase follower when the target changes.
func (a *App) follow(ctx context.Context, target kit.Target) {
	a.followMu.Lock()
	defer a.followMu.Unlock()
	if a.followCancel != nil && a.followTarget == target {
		return
	}
	if a.followCancel != nil {
		a.followCancel()
		a.followCancel = nil
	}
	a.followTarget = target
	if target.ChatID == 0 {
		return
	}
	fctx, cancel := context.WithCancel(ctx)
	a.followCancel = cancel
	a.sup.Go0("notifier.follow", func(context.Context) { a.notif.Follow(fctx, a.bus, target) })
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, "STOPPING=1")

	a.sup.Cancel()

	step(ctx, a.log, "http", 3*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	step(ctx, a.log, "jobs", 2*time.Second, func(c context.Context) error {
		if a.sched != nil {
			a.sched.Stop(c)
		}
		return nil
	})
	step(ctx, a.log, "notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step(ctx, a.log, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step(ctx, a.log, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and the caller's deadline.
func step(ctx context.Context, log logx.Logger, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx := ctx
	if max > 0 {
		// respect the caller's deadline; never extend it
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			max = time.Millisecond
		}
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			if err := <-done; err != nil {
				log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
			}
		}()
	}
}
