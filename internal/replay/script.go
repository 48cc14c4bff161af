// Package replay drives a shake session from a scripted input timeline on a
// virtual clock and records what the state machines did.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Input kinds.
const (
	InputKey        = "key"
	InputClick      = "click"
	InputMotion     = "motion"
	InputLanguage   = "language"
	InputSkin       = "skin"
	InputPermission = "permission"
)

// Duration is a Go duration string in YAML ("120ms", "2s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	if v < 0 {
		return fmt.Errorf("line %d: duration must be >= 0", n.Line)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

type Accel struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Step is one scripted input. Repeat > 1 expands into a burst spaced by Every.
type Step struct {
	At     Duration `yaml:"at"`
	Input  string   `yaml:"input"`
	Accel  *Accel   `yaml:"accel,omitempty"`
	Value  string   `yaml:"value,omitempty"`
	Repeat int      `yaml:"repeat,omitempty"`
	Every  Duration `yaml:"every,omitempty"`
}

// Script is a replay file:
//
//	seed: 7
//	language: en
//	steps:
//	  - { at: 0ms, input: key }
//	  - { at: 40ms, input: click, repeat: 3, every: 100ms }
//	  - { at: 1s, input: permission, value: granted }
//	  - { at: 1100ms, input: motion, accel: { x: 12, y: 8, z: 9.8 } }
//	until: 10s
type Script struct {
	Seed     int64    `yaml:"seed,omitempty"`
	Language string   `yaml:"language,omitempty"`
	Skin     string   `yaml:"skin,omitempty"`
	Until    Duration `yaml:"until,omitempty"`
	Steps    []Step   `yaml:"steps"`
}

func Load(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return Parse(b)
}

// Parse decodes and validates a script. Unknown fields are rejected.
func Parse(b []byte) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Script{}, fmt.Errorf("replay script: %w", err)
	}
	if err := s.validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

func (s *Script) validate() error {
	var errs []error
	for i, st := range s.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		switch st.Input {
		case InputKey, InputClick:
		case InputMotion:
			if st.Accel == nil {
				errs = append(errs, fmt.Errorf("%s: motion requires accel", path))
			}
		case InputLanguage, InputSkin:
			if strings.TrimSpace(st.Value) == "" {
				errs = append(errs, fmt.Errorf("%s: %s requires value", path, st.Input))
			}
		case InputPermission:
			if _, ok := parsePermission(st.Value); !ok {
				errs = append(errs, fmt.Errorf("%s: permission must be granted, denied or prompt", path))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown input %q", path, st.Input))
		}
		if st.Repeat < 0 {
			errs = append(errs, fmt.Errorf("%s: repeat must be >= 0", path))
		}
	}
	return errors.Join(errs...)
}

type timedInput struct {
	at   time.Duration
	step Step
}

// expand flattens repeats and orders inputs by time, keeping script order
// for equal times.
func (s Script) expand() []timedInput {
	var out []timedInput
	for _, st := range s.Steps {
		n := max(st.Repeat, 1)
		for i := 0; i < n; i++ {
			out = append(out, timedInput{at: time.Duration(st.At) + time.Duration(i)*time.Duration(st.Every), step: st})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at < out[j].at })
	return out
}
