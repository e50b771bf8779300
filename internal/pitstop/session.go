package pitstop

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/sweeney/pitstop-rig/internal/logic"
	"github.com/sweeney/pitstop-rig/pkg/log"
)

// Session owns the rig monitors for one pit stop and ticks them in order.
// It is not safe for concurrent use; publish Snapshots to other goroutines instead.
type Session struct {
	wheels []*logic.Wheel
	tank   *logic.FuelTank
	log    log.Logger

	phase *fsm.FSM

	prevWheels []logic.WheelState
	prevTank   logic.TankState
	wheelDone  []logic.Latch
	tankDone   logic.Latch

	runningSince time.Time
	elapsed      time.Duration

	startTime     time.Time
	lastHeartbeat time.Time
	counts        EventCounts

	// pending collects phase events raised from fsm callbacks during a tick.
	pending []Event
}

// NewSession creates a session over the given monitors. startTime is used for
// uptime in heartbeats.
func NewSession(wheels []*logic.Wheel, tank *logic.FuelTank, logger log.Logger, startTime time.Time) *Session {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Session{
		wheels:        wheels,
		tank:          tank,
		log:           logger,
		prevWheels:    make([]logic.WheelState, len(wheels)),
		wheelDone:     make([]logic.Latch, len(wheels)),
		prevTank:      tank.State(),
		startTime:     startTime,
		lastHeartbeat: startTime,
		counts:        make(EventCounts),
	}
	for i, w := range wheels {
		s.prevWheels[i] = w.State()
	}

	s.phase = fsm.NewFSM(
		string(PhaseReady),
		fsm.Events{
			{Name: fsmStart, Src: []string{string(PhaseReady)}, Dst: string(PhaseRunning)},
			{Name: fsmHalt, Src: []string{string(PhaseReady), string(PhaseRunning)}, Dst: string(PhaseHalted)},
			{Name: fsmResume, Src: []string{string(PhaseHalted)}, Dst: string(PhaseRunning)},
			{Name: fsmFinish, Src: []string{string(PhaseRunning)}, Dst: string(PhaseComplete)},
		},
		fsm.Callbacks{
			"enter_" + string(PhaseRunning): func(_ context.Context, e *fsm.Event) {
				s.runningSince = eventTime(e)
			},
			"leave_" + string(PhaseRunning): func(_ context.Context, e *fsm.Event) {
				s.elapsed += eventTime(e).Sub(s.runningSince)
			},
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.pending = append(s.pending, Event{
					Timestamp: eventTime(e),
					Type:      phaseEventType(e.Event),
					Phase:     Phase(e.Dst),
				})
			},
		},
	)

	return s
}

// eventTime extracts the tick time passed as the first fsm event argument.
func eventTime(e *fsm.Event) time.Time {
	if len(e.Args) > 0 {
		if t, ok := e.Args[0].(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

func phaseEventType(name string) EventType {
	switch name {
	case fsmStart:
		return EventPitStopStart
	case fsmHalt:
		return EventPitStopHalt
	case fsmResume:
		return EventPitStopResume
	default:
		return EventPitStopComplete
	}
}

// Tick updates every wheel, then the tank, then advances the pit stop phase.
// It returns the events observed during this tick.
func (s *Session) Tick(ctx context.Context, now time.Time) []Event {
	var events []Event

	for i, w := range s.wheels {
		w.Update()
		cur := w.State()
		events = append(events, s.wheelEvents(i, s.prevWheels[i], cur, now)...)
		if w.Degraded() && !s.prevWheels[i].Degraded {
			s.log.Warn("wheel degraded, keeping last state", "wheel", w.Name(), "error", w.Err())
		}
		if err := w.Check(); err != nil {
			s.log.Error(err, "wheel invariant violated", "wheel", w.Name())
		}
		s.prevWheels[i] = cur
	}

	s.tank.Update()
	cur := s.tank.State()
	events = append(events, s.tankEvents(s.prevTank, cur, now)...)
	if s.tank.Degraded() && !s.prevTank.Degraded {
		s.log.Warn("tank degraded, keeping last state", "tank", s.tank.Name(), "error", s.tank.Err())
	}
	if err := s.tank.Check(); err != nil {
		s.log.Error(err, "tank invariant violated", "tank", s.tank.Name())
	}
	s.prevTank = cur

	events = append(events, s.advance(ctx, now)...)

	phase := s.Phase()
	for i := range events {
		if events[i].Phase == "" {
			events[i].Phase = phase
		}
		s.counts[events[i].Type]++
	}
	return events
}

func (s *Session) wheelEvents(i int, prev, cur logic.WheelState, now time.Time) []Event {
	var events []Event
	add := func(t EventType) {
		events = append(events, Event{Timestamp: now, Type: t, Monitor: cur.Name})
	}

	if cur.Degraded != prev.Degraded {
		if cur.Degraded {
			add(EventMonitorDegraded)
		} else {
			add(EventMonitorRecovered)
		}
	}
	if prev.Present && !cur.Present {
		add(EventWheelRemoved)
	}
	if !prev.IsNew && cur.IsNew {
		add(EventWheelNew)
	}
	if prev.Valid && !cur.Valid {
		add(EventWheelInvalid)
	}
	if !prev.Valid && cur.Valid {
		add(EventWheelValid)
	}
	if s.wheelDone[i].SetIf(cur.Complete) {
		add(EventWheelComplete)
	}
	return events
}

func (s *Session) tankEvents(prev, cur logic.TankState, now time.Time) []Event {
	var events []Event
	add := func(t EventType) {
		events = append(events, Event{Timestamp: now, Type: t, Monitor: cur.Name})
	}

	if cur.Degraded != prev.Degraded {
		if cur.Degraded {
			add(EventMonitorDegraded)
		} else {
			add(EventMonitorRecovered)
		}
	}
	if !prev.Probe && cur.Probe {
		add(EventProbeIn)
	}
	if prev.Probe && !cur.Probe {
		add(EventProbeOut)
	}
	if !prev.Full && cur.Full {
		add(EventTankFull)
	}
	if s.tankDone.SetIf(cur.Complete) {
		add(EventTankComplete)
	}
	return events
}

// advance fires whichever phase transitions the current monitor states call for.
func (s *Session) advance(ctx context.Context, now time.Time) []Event {
	s.pending = s.pending[:0]

	departed := s.tank.Probe()
	allValid := true
	for _, w := range s.wheels {
		if !w.Present() || !w.Locked() {
			departed = true
		}
		if !w.Valid() {
			allValid = false
		}
	}

	if departed && s.phase.Is(string(PhaseReady)) {
		s.fire(ctx, fsmStart, now)
	}
	if !allValid && s.phase.Can(fsmHalt) {
		s.fire(ctx, fsmHalt, now)
	}
	if allValid && s.phase.Is(string(PhaseHalted)) {
		s.fire(ctx, fsmResume, now)
	}
	if s.Complete() && s.phase.Can(fsmFinish) {
		s.fire(ctx, fsmFinish, now)
	}

	events := make([]Event, len(s.pending))
	copy(events, s.pending)
	return events
}

func (s *Session) fire(ctx context.Context, event string, now time.Time) {
	from := s.phase.Current()
	if err := s.phase.Event(ctx, event, now); err != nil {
		s.log.Error(err, "phase transition failed", "event", event, "phase", from)
		return
	}
	s.log.Info("pit stop phase changed", "from", from, "to", s.phase.Current(), "elapsed", s.Elapsed(now))
}

// Complete reports whether every wheel and the tank are complete.
func (s *Session) Complete() bool {
	if !s.tank.Complete() {
		return false
	}
	for _, w := range s.wheels {
		if !w.Complete() {
			return false
		}
	}
	return true
}

// Phase returns the current pit stop phase.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Current())
}

// Elapsed returns the time spent running, excluding halts, as of now.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.phase.Is(string(PhaseRunning)) {
		return s.elapsed + now.Sub(s.runningSince)
	}
	return s.elapsed
}

// Wheels returns the current state of every wheel, in configuration order.
func (s *Session) Wheels() []logic.WheelState {
	out := make([]logic.WheelState, len(s.wheels))
	for i, w := range s.wheels {
		out[i] = w.State()
	}
	return out
}

// Tank returns the current tank state.
func (s *Session) Tank() logic.TankState {
	return s.tank.State()
}

// Counts returns a copy of the event counters.
func (s *Session) Counts() EventCounts {
	out := make(EventCounts, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// is <= 0 (disabled).
func (s *Session) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(s.lastHeartbeat) < interval {
		return nil
	}

	s.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(s.startTime),
		Phase:     s.Phase(),
		Elapsed:   s.Elapsed(now),
		Counts:    s.Counts(),
	}
}
