package play

import (
	"math"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"shakethefrog/internal/shake"
)

var (
	styleBase   = tcell.StyleDefault
	styleSkin   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleHeart  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleBubble = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleDim    = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// view is everything one frame needs.
type view struct {
	Snap        shake.Snapshot
	Frame       []string
	Status      string
	Instruction string
	Hint        string
	// Float is how long a heart floats; it scales the rise.
	Float time.Duration
}

func render(s tcell.Screen, v view) {
	s.Clear()
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return
	}
	cx, cy := w/2, h/2

	putStr(s, 0, 0, v.Status, styleDim)

	fw := 0
	for _, line := range v.Frame {
		fw = max(fw, runewidth.StringWidth(line))
	}
	left := cx - fw/2 + wobble(v.Snap)
	top := cy - len(v.Frame)/2
	for i, line := range v.Frame {
		putStr(s, left, top+i, line, styleSkin)
	}

	for _, ht := range v.Snap.Hearts {
		x, y, ok := heartCell(ht, v.Snap.Now, v.Float)
		if !ok {
			continue
		}
		r := '♥'
		if ht.Scale < 1 {
			r = '♡'
		}
		s.SetContent(cx+x, top-1+y, r, nil, styleHeart)
	}

	if v.Snap.MessageVisible && v.Snap.Message != "" {
		drawBubble(s, cx, top-2, v.Snap.Message)
	}

	if v.Hint != "" {
		putStr(s, cx-runewidth.StringWidth(v.Hint)/2, h-3, v.Hint, styleDim)
	}
	putStr(s, cx-runewidth.StringWidth(v.Instruction)/2, h-2, v.Instruction, styleBase)
	s.Show()
}

// wobble shifts the frame left and right while shaking.
func wobble(snap shake.Snapshot) int {
	if !snap.Shaking {
		return 0
	}
	step := snap.Now.UnixMilli() / 40
	amp := 1
	if snap.Intensity >= 40 {
		amp = 2
	}
	return []int{-amp, 0, amp, 0}[step%4]
}

// heartCell maps a heart to a cell offset from the frame's top center.
func heartCell(ht shake.Heart, now time.Time, float time.Duration) (int, int, bool) {
	if float <= 0 {
		float = 2 * time.Second
	}
	p := float64(ht.Age(now)) / float64(float)
	if p < 0 || p >= 1 {
		return 0, 0, false
	}
	rad := ht.Angle * math.Pi / 180
	x := ht.X/2 + math.Cos(rad)*p*ht.Speed*6
	y := ht.Y/4 - p*ht.Speed*8
	return int(math.Round(x)), int(math.Round(y)), true
}

// drawBubble draws a one-line speech bubble whose bottom edge sits on row bottom.
func drawBubble(s tcell.Screen, cx, bottom int, msg string) {
	inner := runewidth.StringWidth(msg) + 2
	left := cx - inner/2 - 1
	border := strings.Repeat("─", inner)
	putStr(s, left, bottom-2, "╭"+border+"╮", styleBubble)
	putStr(s, left, bottom-1, "│ "+msg+" │", styleBubble)
	putStr(s, left, bottom, "╰"+border+"╯", styleBubble)
	s.SetContent(cx, bottom, '┬', nil, styleBubble)
}

func putStr(s tcell.Screen, x, y int, text string, style tcell.Style) {
	w, h := s.Size()
	if y < 0 || y >= h {
		return
	}
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if x >= 0 && x+rw <= w {
			s.SetContent(x, y, r, nil, style)
		}
		x += rw
	}
}
