// Package status provides a thread-safe status tracker for the pitstop-rig daemon.
// The poll loop writes to it; the console display and metrics exporter read from it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pitstop-rig/internal/logic"
	"github.com/sweeney/pitstop-rig/internal/pitstop"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Chip        string
	Polarity    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Wheels   []logic.WheelState
	Tank     logic.TankState
	Phase    pitstop.Phase
	Elapsed  time.Duration
	Complete bool
	Counts   pitstop.EventCounts
	// Recent holds the last few events, oldest first.
	Recent []pitstop.Event
	Ticks  int64
	// LastHeartbeat is zero until the first heartbeat.
	LastHeartbeat time.Time
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Degraded reports whether any monitor failed its last read.
func (s Snapshot) Degraded() bool {
	if s.Tank.Degraded {
		return true
	}
	for _, w := range s.Wheels {
		if w.Degraded {
			return true
		}
	}
	return false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	history *eventRing
	now     func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Phase:     pitstop.PhaseReady,
			Config:    cfg,
		},
		history: newEventRing(DefaultHistory),
		now:     time.Now,
	}
}

// Update copies the session state in. Called from the poll loop on every tick.
func (t *Tracker) Update(s *pitstop.Session, now time.Time) {
	wheels := s.Wheels()
	tank := s.Tank()
	phase := s.Phase()
	elapsed := s.Elapsed(now)
	complete := s.Complete()
	counts := s.Counts()

	t.mu.Lock()
	t.snap.Wheels = wheels
	t.snap.Tank = tank
	t.snap.Phase = phase
	t.snap.Elapsed = elapsed
	t.snap.Complete = complete
	t.snap.Counts = counts
	t.snap.Ticks++
	t.mu.Unlock()
}

// Record appends events to the recent-events history, dropping the oldest.
func (t *Tracker) Record(events ...pitstop.Event) {
	t.mu.Lock()
	for _, ev := range events {
		t.history.push(ev)
	}
	t.mu.Unlock()
}

// Heartbeat records when the last heartbeat was logged.
func (t *Tracker) Heartbeat(at time.Time) {
	t.mu.Lock()
	t.snap.LastHeartbeat = at
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Recent = t.history.items()
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
