// Package motion supplies accelerometer samples to the shake trigger from
// Linux IIO devices or a JSON-lines feed.
package motion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shakethefrog/internal/shake"
	logx "shakethefrog/pkg/logx"
)

const (
	SourceAuto = "auto"
	SourceIIO  = "iio"
	SourceFeed = "feed"
	SourceNone = "none"
)

// DefaultIIORoot is where the kernel lists industrial I/O devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

var ErrNoDevice = errors.New("motion: no accelerometer found")

type Config struct {
	Source       string
	Device       string // IIO device dir; empty picks the first accelerometer under IIORoot
	IIORoot      string
	FeedPath     string
	PollInterval time.Duration
}

// Provider is a motion source. Run delivers samples to emit until ctx is
// done or the source is exhausted.
type Provider interface {
	shake.MotionProvider
	Name() string
	Run(ctx context.Context, emit func(shake.Acceleration)) error
}

// Open picks a provider for cfg. With source auto a missing accelerometer
// yields the unsupported provider, not an error.
func Open(cfg Config, log logx.Logger) (Provider, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Millisecond
	}
	if cfg.IIORoot == "" {
		cfg.IIORoot = DefaultIIORoot
	}
	switch src := strings.ToLower(strings.TrimSpace(cfg.Source)); src {
	case "", SourceAuto:
		p, err := openIIO(cfg)
		if errors.Is(err, ErrNoDevice) {
			log.Debug("no accelerometer; motion unsupported", logx.String("root", cfg.IIORoot))
			return Unsupported{}, nil
		}
		return p, err
	case SourceIIO:
		return openIIO(cfg)
	case SourceFeed:
		if strings.TrimSpace(cfg.FeedPath) == "" {
			return nil, fmt.Errorf("motion: feed source requires a path")
		}
		return NewFeed(cfg.FeedPath, log), nil
	case SourceNone:
		return Unsupported{}, nil
	default:
		return nil, fmt.Errorf("motion: unknown source %q", cfg.Source)
	}
}

func openIIO(cfg Config) (Provider, error) {
	dir := strings.TrimSpace(cfg.Device)
	if dir == "" {
		found, err := FindIIODevice(cfg.IIORoot)
		if err != nil {
			return nil, err
		}
		dir = found
	}
	return &IIO{Dir: dir, Interval: cfg.PollInterval}, nil
}

// Unsupported is the provider of devices without motion sensors.
type Unsupported struct{}

func (Unsupported) Supported() bool { return false }
func (Unsupported) Name() string    { return SourceNone }

func (Unsupported) Run(ctx context.Context, _ func(shake.Acceleration)) error {
	<-ctx.Done()
	return nil
}
