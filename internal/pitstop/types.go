// Package pitstop drives the rig monitors once per tick and decides when the
// pit stop as a whole has started, stalled and finished.
package pitstop

import "time"

// Phase is the state of the pit stop as a whole.
type Phase string

const (
	// PhaseReady: rig assembled, timer not started.
	PhaseReady Phase = "ready"
	// PhaseRunning: crew working, timer running.
	PhaseRunning Phase = "running"
	// PhaseHalted: a wheel reads invalid, timer paused until it clears.
	PhaseHalted Phase = "halted"
	// PhaseComplete: every wheel and the tank are complete. Terminal.
	PhaseComplete Phase = "complete"
)

// Phase machine event names.
const (
	fsmStart  = "start"
	fsmHalt   = "halt"
	fsmResume = "resume"
	fsmFinish = "finish"
)

// EventType identifies an observable change on the rig.
type EventType string

const (
	EventWheelRemoved     EventType = "WHEEL_REMOVED"
	EventWheelNew         EventType = "WHEEL_NEW"
	EventWheelComplete    EventType = "WHEEL_COMPLETE"
	EventWheelInvalid     EventType = "WHEEL_INVALID"
	EventWheelValid       EventType = "WHEEL_VALID"
	EventProbeIn          EventType = "PROBE_IN"
	EventProbeOut         EventType = "PROBE_OUT"
	EventTankFull         EventType = "TANK_FULL"
	EventTankComplete     EventType = "TANK_COMPLETE"
	EventMonitorDegraded  EventType = "MONITOR_DEGRADED"
	EventMonitorRecovered EventType = "MONITOR_RECOVERED"
	EventPitStopStart     EventType = "PITSTOP_START"
	EventPitStopHalt      EventType = "PITSTOP_HALT"
	EventPitStopResume    EventType = "PITSTOP_RESUME"
	EventPitStopComplete  EventType = "PITSTOP_COMPLETE"
)

// Event is one observable change, in the order it was detected within a tick.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Monitor   string // wheel or tank name; empty for pit stop events
	Phase     Phase  // phase after the event
}

// EventCounts tracks the number of each event type since startup.
type EventCounts map[EventType]int

// HeartbeatData contains information for a heartbeat log line.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Phase     Phase
	Elapsed   time.Duration
	Counts    EventCounts
}
