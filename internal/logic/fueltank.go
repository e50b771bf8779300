package logic

import (
	"fmt"
	"math"
)

const (
	// DefaultIncrement is the fuel added per tick while the probe is inserted.
	DefaultIncrement = 0.2
	// DefaultMaxLevel is the tank capacity.
	DefaultMaxLevel = 100.0
)

// TankState is a point-in-time copy of a FuelTank's observable fields.
type TankState struct {
	Name     string
	Probe    bool
	Level    float64
	MaxLevel float64
	Full     bool
	Complete bool
	Degraded bool
}

// FuelTank simulates filling the tank. There is no flow sensor: every tick
// with the probe inserted adds a fixed increment, so fill behaviour depends
// only on the polling cadence.
type FuelTank struct {
	name      string
	probeCh   Channel
	increment float64
	maxLevel  float64

	probe    bool
	ticks    int
	level    float64
	full     Latch
	complete Latch

	degraded bool
	err      error
}

// TankOption customises a FuelTank.
type TankOption func(*FuelTank)

// WithIncrement sets the level added per filling tick.
func WithIncrement(inc float64) TankOption {
	return func(t *FuelTank) { t.increment = inc }
}

// WithMaxLevel sets the tank capacity.
func WithMaxLevel(max float64) TankOption {
	return func(t *FuelTank) { t.maxLevel = max }
}

// NewFuelTank creates an empty tank whose probe is read through probe.
// The probe input is never inverted.
func NewFuelTank(name string, probe Channel, opts ...TankOption) *FuelTank {
	t := &FuelTank{
		name:      name,
		probeCh:   probe,
		increment: DefaultIncrement,
		maxLevel:  DefaultMaxLevel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Update reads the probe and advances the fill by one tick.
// A failed read retains the previous probe state, adds nothing and marks the tank degraded.
func (t *FuelTank) Update() {
	probe, err := t.probeCh.Level()
	if err != nil {
		t.degraded = true
		t.err = fmt.Errorf("tank %s: read probe input: %w", t.name, err)
		return
	}
	t.degraded = false
	t.err = nil
	t.probe = probe

	if t.probe && !t.full.IsSet() {
		t.ticks++
		// Multiplying the tick count avoids the drift of summing 0.2 repeatedly.
		t.level = math.Min(float64(t.ticks)*t.increment, t.maxLevel)
		t.full.SetIf(t.level >= t.maxLevel)
	}

	t.complete.SetIf(t.full.IsSet() && !t.probe)
}

// Name returns the tank label.
func (t *FuelTank) Name() string { return t.name }

// Probe reports whether the fuel probe is inserted.
func (t *FuelTank) Probe() bool { return t.probe }

// Level returns the current fill level in [0, MaxLevel].
func (t *FuelTank) Level() float64 { return t.level }

// MaxLevel returns the tank capacity.
func (t *FuelTank) MaxLevel() float64 { return t.maxLevel }

// Full reports whether the tank has reached MaxLevel. Never resets.
func (t *FuelTank) Full() bool { return t.full.IsSet() }

// Complete reports whether the tank was filled and the probe withdrawn. Never resets.
func (t *FuelTank) Complete() bool { return t.complete.IsSet() }

// Degraded reports whether the last Update failed to read the probe.
func (t *FuelTank) Degraded() bool { return t.degraded }

// Err returns the read error behind Degraded, or nil.
func (t *FuelTank) Err() error { return t.err }

// State returns a copy of the observable fields.
func (t *FuelTank) State() TankState {
	return TankState{
		Name:     t.name,
		Probe:    t.probe,
		Level:    t.level,
		MaxLevel: t.maxLevel,
		Full:     t.full.IsSet(),
		Complete: t.complete.IsSet(),
		Degraded: t.degraded,
	}
}

// Check verifies the tank invariants and returns an *InvariantError on violation.
func (t *FuelTank) Check() error {
	if t.level < 0 || t.level > t.maxLevel {
		return &InvariantError{Monitor: t.name, Reason: fmt.Sprintf("level %.2f outside [0, %.2f]", t.level, t.maxLevel)}
	}
	if t.full.IsSet() != (t.level >= t.maxLevel) {
		return &InvariantError{Monitor: t.name, Reason: fmt.Sprintf("full=%v at level %.2f", t.full.IsSet(), t.level)}
	}
	if t.complete.IsSet() && !t.full.IsSet() {
		return &InvariantError{Monitor: t.name, Reason: "complete before full"}
	}
	return nil
}
