package status

import (
	"encoding/json"
	"sort"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Phase          string         `json:"phase"`
	Complete       bool           `json:"complete"`
	Degraded       bool           `json:"degraded"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Wheels         []WheelJSON    `json:"wheels"`
	Tank           TankJSON       `json:"tank"`
	Counts         map[string]int `json:"event_counts"`
	Recent         []EventJSON    `json:"recent_events,omitempty"`
	Ticks          int64          `json:"ticks"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	LastHeartbeat  string         `json:"last_heartbeat,omitempty"`
	StartTime      string         `json:"start_time"`
	Timestamp      string         `json:"timestamp"`
	Config         ConfigJSON     `json:"config"`
}

// WheelJSON is the JSON representation of one wheel.
type WheelJSON struct {
	Name     string `json:"name"`
	Present  bool   `json:"present"`
	Locked   bool   `json:"locked"`
	New      bool   `json:"new"`
	Valid    bool   `json:"valid"`
	Complete bool   `json:"complete"`
	Degraded bool   `json:"degraded,omitempty"`
}

// TankJSON is the JSON representation of the fuel tank.
type TankJSON struct {
	Name     string  `json:"name"`
	Probe    bool    `json:"probe"`
	Level    float64 `json:"level"`
	MaxLevel float64 `json:"max_level"`
	Full     bool    `json:"full"`
	Complete bool    `json:"complete"`
	Degraded bool    `json:"degraded,omitempty"`
}

// EventJSON is the JSON representation of one recent event.
type EventJSON struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Monitor   string `json:"monitor,omitempty"`
	Phase     string `json:"phase"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Chip        string `json:"chip"`
	Polarity    string `json:"polarity"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}

	wheels := make([]WheelJSON, 0, len(snap.Wheels))
	for _, w := range snap.Wheels {
		wheels = append(wheels, WheelJSON{
			Name:     w.Name,
			Present:  w.Present,
			Locked:   w.Locked,
			New:      w.IsNew,
			Valid:    w.Valid,
			Complete: w.Complete,
			Degraded: w.Degraded,
		})
	}

	counts := make(map[string]int, len(snap.Counts))
	for k, v := range snap.Counts {
		counts[string(k)] = v
	}

	var recent []EventJSON
	for _, ev := range snap.Recent {
		recent = append(recent, EventJSON{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
			Type:      string(ev.Type),
			Monitor:   ev.Monitor,
			Phase:     string(ev.Phase),
		})
	}

	var lastHeartbeat string
	if !snap.LastHeartbeat.IsZero() {
		lastHeartbeat = snap.LastHeartbeat.UTC().Format(time.RFC3339)
	}

	return StatusInner{
		Phase:          phase,
		Complete:       snap.Complete,
		Degraded:       snap.Degraded(),
		ElapsedSeconds: snap.Elapsed.Round(time.Millisecond).Seconds(),
		Wheels:         wheels,
		Tank: TankJSON{
			Name:     snap.Tank.Name,
			Probe:    snap.Tank.Probe,
			Level:    snap.Tank.Level,
			MaxLevel: snap.Tank.MaxLevel,
			Full:     snap.Tank.Full,
			Complete: snap.Tank.Complete,
			Degraded: snap.Tank.Degraded,
		},
		Counts:        counts,
		Recent:        recent,
		Ticks:         snap.Ticks,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		LastHeartbeat: lastHeartbeat,
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Chip:        snap.Config.Chip,
			Polarity:    snap.Config.Polarity,
		},
	}
}

// FormatJSON returns the indented JSON status used by --print-state --json.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// CountKeys returns the event types present in counts, sorted for stable output.
func CountKeys(snap Snapshot) []string {
	keys := make([]string, 0, len(snap.Counts))
	for k := range snap.Counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
