package logic

import "fmt"

// WheelState is a point-in-time copy of a Wheel's observable fields.
type WheelState struct {
	Name           string
	Present        bool
	Locked         bool
	IsNew          bool
	Valid          bool
	Complete       bool
	ReplacedSwitch bool
	Degraded       bool
}

// Wheel tracks one wheel on the rig: whether it hangs on the hub, whether the
// nut is tightened, and whether the replacement has been fitted.
//
// The rig is assumed assembled at start, so Present and Locked begin true.
type Wheel struct {
	name     string
	polarity Polarity

	presentCh  Channel
	lockedCh   Channel
	replacedCh Channel

	present  bool
	locked   bool
	replaced bool
	valid    bool
	isNew    Latch
	complete Latch

	degraded bool
	err      error
}

// NewWheel creates a wheel monitor reading its three inputs through the given
// channels. polarity is applied to the present and locked inputs.
func NewWheel(name string, present, locked, replaced Channel, polarity Polarity) *Wheel {
	return &Wheel{
		name:       name,
		polarity:   polarity,
		presentCh:  present,
		lockedCh:   locked,
		replacedCh: replaced,
		present:    true,
		locked:     true,
		valid:      true,
	}
}

// Update reads all three inputs and advances the wheel state by one tick.
//
// If any read fails, every field keeps its previous value and the wheel is
// marked degraded until the next clean tick.
func (w *Wheel) Update() {
	rawLocked, err := w.lockedCh.Level()
	if err != nil {
		w.fault("locked", err)
		return
	}
	rawPresent, err := w.presentCh.Level()
	if err != nil {
		w.fault("present", err)
		return
	}
	rawReplaced, err := w.replacedCh.Level()
	if err != nil {
		w.fault("new", err)
		return
	}
	w.degraded = false
	w.err = nil

	locked := w.polarity.Apply(rawLocked)
	present := w.polarity.Apply(rawPresent)

	// A new wheel is one that appears after the hub was seen empty and unlocked.
	// This has to use last tick's present/locked, so it runs before they move.
	w.isNew.SetIf(!w.present && !w.locked && present)

	w.present = present
	w.locked = locked
	w.replaced = rawReplaced

	w.valid = !(!w.present && w.locked)
	w.complete.SetIf(w.isNew.IsSet() && w.present && w.locked)
}

func (w *Wheel) fault(input string, err error) {
	w.degraded = true
	w.err = fmt.Errorf("wheel %s: read %s input: %w", w.name, input, err)
}

// Name returns the wheel label, usually "front" or "rear".
func (w *Wheel) Name() string { return w.name }

// Present reports whether the wheel hangs on the hub.
func (w *Wheel) Present() bool { return w.present }

// Locked reports whether the wheel nut is tightened.
func (w *Wheel) Locked() bool { return w.locked }

// IsNew reports whether the replacement wheel has been mounted. Never resets.
func (w *Wheel) IsNew() bool { return w.isNew.IsSet() }

// Valid is false when the wheel reads locked but not present, which cannot
// happen physically and points at a sensor fault or a bad release order.
func (w *Wheel) Valid() bool { return w.valid }

// Complete reports whether the replacement wheel has been mounted and locked.
// Completion is latched, but an invalid wheel never reports complete.
func (w *Wheel) Complete() bool { return w.complete.IsSet() && w.valid }

// ReplacedSwitch returns the last raw level of the new-wheel input.
func (w *Wheel) ReplacedSwitch() bool { return w.replaced }

// Polarity returns the polarity applied to the present and locked inputs.
func (w *Wheel) Polarity() Polarity { return w.polarity }

// Degraded reports whether the last Update failed to read an input.
func (w *Wheel) Degraded() bool { return w.degraded }

// Err returns the read error behind Degraded, or nil.
func (w *Wheel) Err() error { return w.err }

// State returns a copy of the observable fields.
func (w *Wheel) State() WheelState {
	return WheelState{
		Name:           w.name,
		Present:        w.present,
		Locked:         w.locked,
		IsNew:          w.isNew.IsSet(),
		Valid:          w.valid,
		Complete:       w.Complete(),
		ReplacedSwitch: w.replaced,
		Degraded:       w.degraded,
	}
}

// Check verifies the wheel invariants and returns an *InvariantError on violation.
func (w *Wheel) Check() error {
	if w.valid != (w.present || !w.locked) {
		return &InvariantError{Monitor: w.name, Reason: fmt.Sprintf("valid=%v with present=%v locked=%v", w.valid, w.present, w.locked)}
	}
	if w.Complete() && !w.valid {
		return &InvariantError{Monitor: w.name, Reason: "complete while invalid"}
	}
	if w.complete.IsSet() && !w.isNew.IsSet() {
		return &InvariantError{Monitor: w.name, Reason: "complete without a new wheel"}
	}
	return nil
}
