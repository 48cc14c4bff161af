// Package play is the terminal front-end: it renders a shake session with
// tcell and feeds it keyboard, mouse and motion input.
package play

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"

	"shakethefrog/internal/haptics"
	"shakethefrog/internal/i18n"
	"shakethefrog/internal/motion"
	"shakethefrog/internal/runtime/supervisor"
	"shakethefrog/internal/shake"
	"shakethefrog/internal/skins"
	logx "shakethefrog/pkg/logx"
)

type Options struct {
	// Screen defaults to the controlling terminal.
	Screen tcell.Screen

	Tuning   shake.Options
	Catalogs *i18n.Bundle
	Skins    *skins.Registry
	Language string
	Skin     string
	FPS      int
	Sound    bool
	Motion   motion.Provider
	Logger   logx.Logger
}

type game struct {
	screen  tcell.Screen
	sup     *supervisor.Supervisor
	loop    *shake.Loop
	log     logx.Logger
	motion  motion.Provider
	catalog *i18n.Bundle
	skins   *skins.Registry
	pulser  *haptics.Pulser
	float   time.Duration
	fps     int

	// Owned by the loop goroutine.
	sess *shake.Session
	lang string
	skin skins.Skin

	// Owned by the input goroutine.
	buttons tcell.ButtonMask

	motionStarted atomic.Bool
	asking        atomic.Bool
}

// Run plays until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.Catalogs == nil {
		return errors.New("play: catalogs required")
	}
	if opts.Skins == nil {
		opts.Skins = skins.NewRegistry("", nil)
	}
	if opts.Motion == nil {
		opts.Motion = motion.Unsupported{}
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	log := opts.Logger

	screen := opts.Screen
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("open terminal: %w", err)
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	screen.EnableMouse()
	screen.HideCursor()

	sup := supervisor.New(ctx, supervisor.WithLogger(log), supervisor.WithCancelOnError(true))
	loop := shake.NewLoop(256, log.Component("play.loop"))
	pulser := haptics.New(haptics.Config{Sound: opts.Sound, Bell: screen.Beep}, log.Component("haptics"))

	g := &game{
		screen:  screen,
		sup:     sup,
		loop:    loop,
		log:     log,
		motion:  opts.Motion,
		catalog: opts.Catalogs,
		skins:   opts.Skins,
		pulser:  pulser,
		float:   opts.Tuning.Hearts.FloatDuration,
		fps:     opts.FPS,
		lang:    opts.Catalogs.Normalize(opts.Language),
		skin:    opts.Skins.Resolve(opts.Skin),
	}
	tuning := opts.Tuning
	tuning.Catalog = opts.Catalogs.Catalog(g.lang)
	tuning.Haptics = pulser
	tuning.Logger = log
	g.sess = shake.NewSession(loop, tuning)

	sup.Go("play.loop", loop.Run)
	sup.Go0("play.input", g.pollInput)
	sup.Go0("play.render", g.renderLoop)
	log.Info("play started", logx.String("lang", g.lang), logx.String("skin", g.skin.ID), logx.String("motion", g.motion.Name()))

	<-sup.Context().Done()
	// Fini unblocks PollEvent.
	screen.Fini()
	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Wait(waitCtx)
	g.sess.Close()
	pulser.Close()
	log.Info("play stopped")
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (g *game) pollInput(ctx context.Context) {
	for {
		ev := g.screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return
		}
		g.handle(ev)
	}
}

func (g *game) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			g.sup.Cancel()
		case tcell.KeyRune:
			switch ev.Rune() {
			case ' ':
				g.loop.Post(func() { g.sess.Trigger.Activate() })
			case 'm', 'M':
				g.requestMotion()
			case 'l', 'L':
				g.loop.Post(g.nextLanguage)
			case 's', 'S':
				g.loop.Post(func() { g.skin = g.skins.Next(g.skin.ID) })
			case 'q', 'Q':
				g.sup.Cancel()
			}
		}
	case *tcell.EventMouse:
		btn := ev.Buttons()
		pressed := btn&tcell.Button1 != 0 && g.buttons&tcell.Button1 == 0
		g.buttons = btn
		if pressed {
			g.loop.Post(func() { g.sess.Trigger.Click() })
		}
	case *tcell.EventResize:
		g.screen.Sync()
	}
}

func (g *game) nextLanguage() {
	g.lang = g.catalog.Next(g.lang)
	g.sess.Messages.SetCatalog(g.catalog.Catalog(g.lang))
	g.log.Debug("language switched", logx.String("lang", g.lang))
}

// requestMotion asks for motion access off the loop and starts the sampler
// once granted.
func (g *game) requestMotion() {
	if !g.asking.CompareAndSwap(false, true) {
		return
	}
	g.sup.Go0("play.permission", func(ctx context.Context) {
		defer g.asking.Store(false)
		p := shake.RequestMotionPermission(ctx, g.motion, g.log)
		g.loop.Post(func() { g.sess.Trigger.SetPermission(p) })
		g.log.Info("motion permission", logx.String("result", p.String()))
		if p != shake.PermissionGranted || !g.motionStarted.CompareAndSwap(false, true) {
			return
		}
		g.sup.GoRestart("play.motion", func(ctx context.Context) error {
			return g.motion.Run(ctx, func(a shake.Acceleration) {
				g.loop.Post(func() { g.sess.Trigger.Motion(a) })
			})
		}, supervisor.WithRestartBackoff(time.Second, 30*time.Second), supervisor.WithMaxRestarts(5))
	})
}

func (g *game) renderLoop(ctx context.Context) {
	t := time.NewTicker(time.Second / time.Duration(g.fps))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.loop.Post(g.draw)
		}
	}
}

func (g *game) draw() {
	render(g.screen, g.view())
}

func (g *game) view() view {
	snap := g.sess.Snapshot()
	key := i18n.KeyNoShakeInstructionsDesktop
	if snap.Permission == shake.PermissionGranted {
		key = i18n.KeyShakeInstructionsDesktop
	}
	v := view{
		Snap:        snap,
		Frame:       g.skin.Frame(snap.Shaking),
		Instruction: g.catalog.Instruction(g.lang, key, g.skin.ID),
		Status: fmt.Sprintf("%s · %s · shakes %d · motion %s   [space] shake [m] motion [l] language [s] skin [esc] quit",
			g.lang, g.catalog.SkinName(g.skin.ID, g.lang, i18n.Nominative), snap.ShakeCount, snap.Permission),
		Float: g.float,
	}
	if g.motion.Supported() && snap.Permission == shake.PermissionPrompt {
		v.Hint = "[m] " + g.catalog.UIMessage(g.lang, i18n.KeyEnableDeviceShake, "")
	}
	return v
}
