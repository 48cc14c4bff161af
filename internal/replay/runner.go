package replay

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"text/tabwriter"
	"time"

	"shakethefrog/internal/i18n"
	"shakethefrog/internal/shake"
	"shakethefrog/internal/skins"
	logx "shakethefrog/pkg/logx"
)

// Timeline entry kinds besides the shake.Outcome names.
const (
	KindStart      = "start"
	KindEnd        = "end"
	KindMessage    = "message"
	KindHide       = "hide"
	KindHearts     = "hearts"
	KindIgnored    = "ignored"
	KindLanguage   = "language"
	KindSkin       = "skin"
	KindPermission = "permission"
)

// Epoch is the virtual start time of every replay.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Entry is one observable effect.
type Entry struct {
	At     Duration `json:"at"`
	Kind   string   `json:"kind"`
	Detail string   `json:"detail,omitempty"`
}

type Summary struct {
	Starts   int `json:"starts"`
	Queued   int `json:"queued"`
	Dropped  int `json:"dropped"`
	Ignored  int `json:"ignored"`
	Messages int `json:"messages"`
	Hearts   int `json:"hearts"`
}

type Timeline struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
	// Final is the session state at the end of the run.
	Final shake.Snapshot `json:"-"`
}

// Options are the collaborators of a run. Tuning zero values follow the
// shake package rules (zero grace window and cooldown are kept); start
// from shake.DefaultOptions. Tuning.Catalog, Rand and Haptics are owned by
// the runner.
type Options struct {
	Tuning   shake.Options
	Catalogs *i18n.Bundle
	Skins    *skins.Registry
	Logger   logx.Logger
}

// settle is how long a run continues after the last input when the script
// has no explicit end: one message visibility plus cooldown plus slack.
const settle = 6 * time.Second

// Run executes s and returns the timeline. Runs are deterministic for a
// given script and options.
func Run(s Script, opts Options) (Timeline, error) {
	if opts.Catalogs == nil {
		return Timeline{}, fmt.Errorf("replay: catalogs required")
	}
	if opts.Skins == nil {
		opts.Skins = skins.NewRegistry("", nil)
	}
	clock := shake.NewVirtualClock(Epoch)
	lang := opts.Catalogs.Normalize(s.Language)
	skin := opts.Skins.Resolve(s.Skin)

	tuning := opts.Tuning
	tuning.Catalog = opts.Catalogs.Catalog(lang)
	tuning.Rand = rand.New(rand.NewSource(s.Seed))
	tuning.Haptics = nil
	tuning.Logger = opts.Logger
	sess := shake.NewSession(clock, tuning)
	defer sess.Close()

	maxHearts := tuning.Hearts.MaxPerShake
	if maxHearts <= 0 {
		maxHearts = shake.DefaultHeartsConfig().MaxPerShake
	}

	var tl Timeline
	add := func(kind, detail string) {
		tl.Entries = append(tl.Entries, Entry{At: Duration(clock.Now().Sub(Epoch)), Kind: kind, Detail: detail})
	}
	sess.Animation.OnStart(func(e shake.ShakeEvent) {
		tl.Summary.Starts++
		add(KindStart, fmt.Sprintf("intensity=%g count=%d", e.Intensity, e.Count))
		if n := shake.HeartCount(e.Intensity, maxHearts); n > 0 {
			tl.Summary.Hearts += n
			add(KindHearts, fmt.Sprintf("%d", n))
		}
	})
	sess.Animation.OnEnd(func() { add(KindEnd, "") })
	sess.Messages.OnShow(func(msg string) {
		tl.Summary.Messages++
		add(KindMessage, msg)
	})
	sess.Messages.OnHide(func() { add(KindHide, "") })

	record := func(o shake.Outcome) {
		switch {
		case o == 0:
			tl.Summary.Ignored++
			add(KindIgnored, "")
		case o == shake.Queued:
			tl.Summary.Queued++
			add(o.String(), "")
		case o.Dropped():
			tl.Summary.Dropped++
			add(o.String(), "")
		}
	}

	inputs := s.expand()
	var last time.Duration
	for _, in := range inputs {
		clock.AdvanceTo(Epoch.Add(in.at))
		last = in.at
		st := in.step
		switch st.Input {
		case InputKey:
			record(sess.Trigger.Activate())
		case InputClick:
			record(sess.Trigger.Click())
		case InputMotion:
			record(sess.Trigger.Motion(shake.Acceleration{X: st.Accel.X, Y: st.Accel.Y, Z: st.Accel.Z}))
		case InputLanguage:
			lang = opts.Catalogs.Normalize(st.Value)
			sess.Messages.SetCatalog(opts.Catalogs.Catalog(lang))
			add(KindLanguage, lang)
		case InputSkin:
			skin = opts.Skins.Resolve(st.Value)
			add(KindSkin, skin.ID)
		case InputPermission:
			p, _ := parsePermission(st.Value)
			sess.Trigger.SetPermission(p)
			add(KindPermission, p.String())
		}
	}

	end := time.Duration(s.Until)
	if end <= 0 {
		end = last + settle
	}
	clock.AdvanceTo(Epoch.Add(end))
	tl.Final = sess.Snapshot()
	return tl, nil
}

// scriptedPermission answers a permission request with a fixed result.
type scriptedPermission shake.Permission

func (scriptedPermission) Supported() bool { return true }

func (p scriptedPermission) RequestPermission(context.Context) (shake.Permission, error) {
	return shake.Permission(p), nil
}

func parsePermission(v string) (shake.Permission, bool) {
	var want shake.Permission
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "granted":
		want = shake.PermissionGranted
	case "denied":
		want = shake.PermissionDenied
	case "prompt":
		want = shake.PermissionPrompt
	default:
		return shake.PermissionDenied, false
	}
	return shake.RequestMotionPermission(context.Background(), scriptedPermission(want), logx.Nop()), true
}

// WriteText renders the timeline as aligned columns followed by the summary.
func (tl Timeline) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range tl.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", time.Duration(e.At), e.Kind, e.Detail)
	}
	s := tl.Summary
	fmt.Fprintf(tw, "\nstarts=%d queued=%d dropped=%d ignored=%d messages=%d hearts=%d\n",
		s.Starts, s.Queued, s.Dropped, s.Ignored, s.Messages, s.Hearts)
	return tw.Flush()
}
