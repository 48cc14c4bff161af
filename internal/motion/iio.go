package motion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"shakethefrog/internal/shake"
)

// IIO polls an industrial I/O accelerometer through sysfs. Raw readings are
// multiplied by the per-axis scale (or the shared in_accel_scale) to get m/s².
type IIO struct {
	Dir      string
	Interval time.Duration
}

var axes = [3]string{"x", "y", "z"}

// FindIIODevice returns the first device under root exposing in_accel_x_raw.
func FindIIODevice(root string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*", "in_accel_x_raw"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNoDevice
	}
	sort.Strings(matches)
	return filepath.Dir(matches[0]), nil
}

func (d *IIO) Supported() bool {
	_, err := os.Stat(filepath.Join(d.Dir, "in_accel_x_raw"))
	return err == nil
}

func (d *IIO) Name() string { return SourceIIO }

// RequestPermission probes read access. Sysfs nodes restricted to another
// group read as a denial.
func (d *IIO) RequestPermission(context.Context) (shake.Permission, error) {
	f, err := os.Open(filepath.Join(d.Dir, "in_accel_x_raw"))
	switch {
	case err == nil:
		_ = f.Close()
		return shake.PermissionGranted, nil
	case errors.Is(err, fs.ErrPermission):
		return shake.PermissionDenied, nil
	default:
		return shake.PermissionDenied, err
	}
}

// Read takes one sample.
func (d *IIO) Read() (shake.Acceleration, error) {
	shared, err := readFloat(filepath.Join(d.Dir, "in_accel_scale"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return shake.Acceleration{}, err
		}
		shared = 1
	}
	var v [3]float64
	for i, axis := range axes {
		raw, err := readFloat(filepath.Join(d.Dir, "in_accel_"+axis+"_raw"))
		if err != nil {
			return shake.Acceleration{}, err
		}
		scale, err := readFloat(filepath.Join(d.Dir, "in_accel_"+axis+"_scale"))
		if err != nil {
			scale = shared
		}
		v[i] = raw * scale
	}
	return shake.Acceleration{X: v[0], Y: v[1], Z: v[2]}, nil
}

func (d *IIO) Run(ctx context.Context, emit func(shake.Acceleration)) error {
	interval := d.Interval
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a, err := d.Read()
			if err != nil {
				return fmt.Errorf("iio %s: %w", d.Dir, err)
			}
			emit(a)
		}
	}
}

func readFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return f, nil
}
