package status

import "github.com/sweeney/pitstop-rig/internal/pitstop"

// DefaultHistory is how many recent events a Tracker keeps.
const DefaultHistory = 8

// eventRing is a fixed-capacity FIFO of the most recent events.
// Not safe for concurrent use; Tracker holds the lock.
type eventRing struct {
	buf      []pitstop.Event
	capacity int
	head     int // next write position
	count    int
	dropped  int // events overwritten since startup
}

func newEventRing(capacity int) *eventRing {
	if capacity < 1 {
		capacity = 1
	}
	return &eventRing{
		buf:      make([]pitstop.Event, capacity),
		capacity: capacity,
	}
}

func (r *eventRing) push(ev pitstop.Event) {
	if r.count == r.capacity {
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = ev
		r.head = (r.head + 1) % r.capacity
		r.dropped++
		return
	}
	r.buf[r.head] = ev
	r.head = (r.head + 1) % r.capacity
	r.count++
}

// items returns the buffered events oldest first without removing them.
func (r *eventRing) items() []pitstop.Event {
	if r.count == 0 {
		return nil
	}

	result := make([]pitstop.Event, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}
	return result
}

func (r *eventRing) len() int {
	return r.count
}
