package logic

// Latch is a one-way boolean. It starts false and, once set, stays set for the
// life of the value. There is no way to clear it.
type Latch struct {
	set bool
}

// Set latches to true. Setting an already set latch is a no-op.
// It reports whether this call changed the latch.
func (l *Latch) Set() bool {
	if l.set {
		return false
	}
	l.set = true
	return true
}

// SetIf latches when cond holds and reports whether the latch changed.
func (l *Latch) SetIf(cond bool) bool {
	if !cond {
		return false
	}
	return l.Set()
}

// IsSet reports whether the latch has been set.
func (l *Latch) IsSet() bool {
	return l.set
}
