package motion

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"shakethefrog/internal/shake"
	logx "shakethefrog/pkg/logx"
)

// Feed reads samples from a file or FIFO, one JSON object per line:
//
//	{"x": 12.5, "y": -3, "z": 9.8, "after": "50ms"}
//
// Axes may also be nested under "accel". "after" waits before the sample is
// delivered. Blank lines and lines starting with # are skipped.
type Feed struct {
	Path string
	log  logx.Logger
}

func NewFeed(path string, log logx.Logger) *Feed { return &Feed{Path: path, log: log} }

func (f *Feed) Supported() bool { return true }
func (f *Feed) Name() string    { return SourceFeed }

func (f *Feed) Run(ctx context.Context, emit func(shake.Acceleration)) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		// Unblocks a FIFO read on cancellation.
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = file.Close()
	}()

	sc := bufio.NewScanner(file)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		a, wait, err := ParseSample(text)
		if err != nil {
			f.log.Warn("skipping motion sample", logx.Int("line", line), logx.Err(err))
			continue
		}
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		emit(a)
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}

// ParseSample decodes one feed line.
func ParseSample(line string) (shake.Acceleration, time.Duration, error) {
	if !gjson.Valid(line) {
		return shake.Acceleration{}, 0, fmt.Errorf("invalid json")
	}
	doc := gjson.Parse(line)
	axes := doc
	if nested := doc.Get("accel"); nested.IsObject() {
		axes = nested
	}
	x, y, z := axes.Get("x"), axes.Get("y"), axes.Get("z")
	if !x.Exists() && !y.Exists() && !z.Exists() {
		return shake.Acceleration{}, 0, fmt.Errorf("no x/y/z fields")
	}
	var wait time.Duration
	if after := doc.Get("after"); after.Exists() {
		d, err := time.ParseDuration(after.String())
		if err != nil || d < 0 {
			return shake.Acceleration{}, 0, fmt.Errorf("after: invalid duration %q", after.String())
		}
		wait = d
	}
	return shake.Acceleration{X: x.Float(), Y: y.Float(), Z: z.Float()}, wait, nil
}
