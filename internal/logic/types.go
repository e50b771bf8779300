// Package logic contains the pure state logic for the pit-stop rig monitors.
// This package has NO external dependencies (no GPIO, OS, logging or clocks).
// Inputs arrive through the Channel interface; all state is polled by the caller.
package logic

import "fmt"

// Channel is a single digital input owned by one monitor.
type Channel interface {
	// Level returns the raw, already debounced level of the input.
	Level() (bool, error)
}

// LevelReader reads named digital inputs. gpio.Reader satisfies it.
type LevelReader interface {
	Read(channel string) (bool, error)
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func() (bool, error)

// Level calls f.
func (f ChannelFunc) Level() (bool, error) { return f() }

// Bind returns the Channel for input id on r.
func Bind(r LevelReader, id string) Channel {
	return ChannelFunc(func() (bool, error) {
		return r.Read(id)
	})
}

// Polarity describes how a raw level maps onto the logical state.
type Polarity bool

const (
	// Normal passes raw levels through (toggle switches).
	Normal Polarity = false
	// Inverted flips raw levels. Momentary push buttons on the test rig read
	// true while released, so "not pressed" means present/locked.
	Inverted Polarity = true
)

// Apply returns raw XOR p.
func (p Polarity) Apply(raw bool) bool {
	return raw != bool(p)
}

// String implements fmt.Stringer.
func (p Polarity) String() string {
	if p {
		return "inverted"
	}
	return "normal"
}

// InvariantError reports a monitor state that can only arise from a programming defect.
type InvariantError struct {
	Monitor string
	Reason  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated on %s: %s", e.Monitor, e.Reason)
}
