//go:build linux

package gpio

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads inputs from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
}

// NewRealReader requests every pin in pins (channel name -> BCM offset) as a
// pulled-up input with the given kernel debounce period.
func NewRealReader(chipName string, pins map[string]int, debounce time.Duration) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %s", chipName)
	}

	r := &RealReader{
		chip:  chip,
		lines: make(map[string]*gpiocdev.Line, len(pins)),
	}

	// Request in a stable order so failures are reproducible.
	names := make([]string, 0, len(pins))
	for name := range pins {
		names = append(names, name)
	}
	sort.Strings(names)

	// Push buttons and reed switches close to ground, so pull up and let the
	// kernel filter contact bounce.
	for _, name := range names {
		line, err := chip.RequestLine(pins[name],
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithDebounce(debounce),
			gpiocdev.WithConsumer("pitstop-rig"),
		)
		if err != nil {
			r.Close()
			return nil, errors.Wrapf(err, "request %s pin %d", name, pins[name])
		}
		r.lines[name] = line
	}

	return r, nil
}

// Read returns the raw level of the named input. No inversion is applied here.
func (r *RealReader) Read(channel string) (bool, error) {
	line, ok := r.lines[channel]
	if !ok {
		return false, errors.Errorf("unknown channel %q", channel)
	}
	v, err := line.Value()
	if err != nil {
		return false, errors.Wrapf(err, "read %s pin", channel)
	}
	return v == 1, nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing so the next boot sees them in a clean state.
func (r *RealReader) Close() error {
	var errs []error

	for name, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, errors.Wrapf(err, "reconfigure %s pin", name))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close %s pin", name))
		}
	}
	r.lines = nil

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close chip"))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
