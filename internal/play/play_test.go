package play

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"shakethefrog/internal/i18n"
	"shakethefrog/internal/shake"
	"shakethefrog/internal/skins"
	logx "shakethefrog/pkg/logx"
)

func screenText(s tcell.SimulationScreen) string {
	cells, w, h := s.GetContents()
	var b strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) == 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(string(c.Runes))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func TestRenderBubbleAndInstruction(t *testing.T) {
	t.Parallel()

	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Fini()
	s.SetSize(60, 20)

	now := time.Unix(100, 0)
	render(s, view{
		Snap: shake.Snapshot{
			Now:            now,
			MessageVisible: true,
			Message:        "Ribbit!",
			Hearts:         []shake.Heart{{ID: 1, Speed: 1, Scale: 1, BornAt: now}},
		},
		Frame:       skins.NewRegistry("", nil).Default().Frame(false),
		Status:      "en",
		Instruction: "Click/tap Frog!",
		Float:       2 * time.Second,
	})
	text := screenText(s)
	for _, want := range []string{"│ Ribbit! │", "(----)", "Click/tap Frog!", "♥"} {
		if !strings.Contains(text, want) {
			t.Fatalf("screen missing %q:\n%s", want, text)
		}
	}
}

func TestHeartCell(t *testing.T) {
	t.Parallel()

	born := time.Unix(0, 0)
	h := shake.Heart{Angle: 0, Speed: 1, X: 4, Y: 0, BornAt: born}
	tests := []struct {
		age    time.Duration
		x, y   int
		inside bool
	}{
		{0, 2, 0, true},
		{time.Second, 5, -4, true},
		{2 * time.Second, 0, 0, false},
		{-time.Millisecond, 0, 0, false},
	}
	for _, tt := range tests {
		x, y, ok := heartCell(h, born.Add(tt.age), 2*time.Second)
		if ok != tt.inside || (ok && (x != tt.x || y != tt.y)) {
			t.Fatalf("heartCell(age %v) = %d,%d,%v; want %d,%d,%v", tt.age, x, y, ok, tt.x, tt.y, tt.inside)
		}
	}
}

func TestWobble(t *testing.T) {
	t.Parallel()

	if got := wobble(shake.Snapshot{Shaking: false, Now: time.UnixMilli(40)}); got != 0 {
		t.Fatalf("idle wobble = %d", got)
	}
	seen := map[int]bool{}
	for ms := int64(0); ms < 160; ms += 40 {
		seen[wobble(shake.Snapshot{Shaking: true, Intensity: 50, Now: time.UnixMilli(ms)})] = true
	}
	if !seen[-2] || !seen[2] || !seen[0] {
		t.Fatalf("wobble offsets = %v, want -2, 0, 2", seen)
	}
}

func TestRunShakesAndQuits(t *testing.T) {
	t.Parallel()

	cat, err := i18n.New(i18n.Options{})
	if err != nil {
		t.Fatalf("i18n.New: %v", err)
	}
	s := tcell.NewSimulationScreen("UTF-8")
	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), Options{Screen: s, Catalogs: cat, FPS: 60, Logger: logx.Nop()})
	}()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if strings.Contains(screenText(s), want) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("screen never showed %q:\n%s", want, screenText(s))
	}

	waitFor("(----)")
	s.InjectKey(tcell.KeyRune, ' ', tcell.ModNone)
	waitFor("shakes 1")
	s.InjectKey(tcell.KeyRune, 'l', tcell.ModNone)
	waitFor("ka ·")
	s.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after escape")
	}
}
