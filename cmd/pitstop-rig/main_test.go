package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/pitstop-rig/internal/config"
	"github.com/sweeney/pitstop-rig/internal/gpio"
	"github.com/sweeney/pitstop-rig/internal/metrics"
	"github.com/sweeney/pitstop-rig/internal/pitstop"
	"github.com/sweeney/pitstop-rig/internal/status"
	"github.com/sweeney/pitstop-rig/pkg/log"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFlagsOverrideConfig(t *testing.T) {
	v := viper.New()
	cmd := newRootCommand(v)
	err := cmd.ParseFlags([]string{"--poll=250ms", "--chip=gpiochip1", "--inverted=false", "--metrics-textfile=/tmp/pitstop.prom"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, err := config.Load(v, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll != 250*time.Millisecond {
		t.Errorf("Poll: got %v, want 250ms", cfg.Poll)
	}
	if cfg.GPIO.Chip != "gpiochip1" {
		t.Errorf("Chip: got %q, want gpiochip1", cfg.GPIO.Chip)
	}
	if cfg.GPIO.Inverted {
		t.Error("expected Inverted=false from flag")
	}
	if cfg.Metrics.Textfile != "/tmp/pitstop.prom" {
		t.Errorf("Textfile: got %q", cfg.Metrics.Textfile)
	}
	if cfg.Display.Interval != time.Second {
		t.Errorf("Display.Interval: got %v, want default 1s", cfg.Display.Interval)
	}
	if cfg.GPIO.Debounce != gpio.MinDebounce {
		t.Errorf("Debounce: got %v, want %v", cfg.GPIO.Debounce, gpio.MinDebounce)
	}
}

func TestEveryBoundFlagExists(t *testing.T) {
	cmd := newRootCommand(viper.New())
	for name := range flagKeys {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}
	for _, name := range []string{"config", "print-state", "json", "log.level", "log.format"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}
}

func TestNewSessionFollowsConfig(t *testing.T) {
	cfg, err := config.Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Default rig is inverted: a raw high reads as absent/unlocked.
	r := gpio.NewFakeReader(nil)
	for ch := range cfg.Pins() {
		r.Set(ch, false)
	}
	r.Set("rear.present", true)

	s := newSession(cfg, r, log.NewNopLogger(), start)
	s.Tick(context.Background(), start)

	wheels := s.Wheels()
	if len(wheels) != 2 {
		t.Fatalf("Wheels: got %d, want 2", len(wheels))
	}
	if wheels[0].Name != "front" || wheels[1].Name != "rear" {
		t.Errorf("wheel names: got %q, %q", wheels[0].Name, wheels[1].Name)
	}
	if !wheels[0].Present || !wheels[0].Locked {
		t.Errorf("front: got %+v, want present and locked", wheels[0])
	}
	if wheels[1].Present {
		t.Error("rear: expected absent with raw high present input")
	}
	if s.Tank().Name != "fuel" || s.Tank().MaxLevel != 100 {
		t.Errorf("tank: got %+v", s.Tank())
	}
	if r.Reads["fuel.probe"] != 1 {
		t.Errorf("probe reads: got %d, want 1", r.Reads["fuel.probe"])
	}
}

func TestTrackerConfig(t *testing.T) {
	cfg, err := config.Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := trackerConfig(cfg)
	if got.PollMs != 100 || got.DebounceMs != 10 || got.HeartbeatMs != 300000 {
		t.Errorf("timings: got %+v", got)
	}
	if got.Polarity != "inverted" {
		t.Errorf("Polarity: got %q, want inverted", got.Polarity)
	}
}

func TestPrintStateJSON(t *testing.T) {
	_, s := oneWheelRig(t)
	tr := status.NewTracker(start, status.Config{})

	var buf bytes.Buffer
	if err := printState(context.Background(), &buf, s, tr, true); err != nil {
		t.Fatalf("printState: %v", err)
	}
	if !strings.Contains(buf.String(), `"phase": "ready"`) {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestPrintStateTable(t *testing.T) {
	_, s := oneWheelRig(t)
	tr := status.NewTracker(start, status.Config{})

	var buf bytes.Buffer
	if err := printState(context.Background(), &buf, s, tr, false); err != nil {
		t.Fatalf("printState: %v", err)
	}
	if !strings.Contains(buf.String(), "WHEEL") || !strings.Contains(buf.String(), "TANK") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

// --- runLoop tests ---

// oneWheelRig returns a normal-polarity rig with a single front wheel and a
// tank that fills in two ticks, assembled and idle.
func oneWheelRig(t *testing.T) (*gpio.FakeReader, *pitstop.Session) {
	t.Helper()
	cfg := &config.Config{
		Wheels: []config.WheelConfig{{Name: "front", Present: 5, Locked: 6, New: 13}},
		Tank:   config.TankConfig{Name: "fuel", Probe: 20, Increment: 50, MaxLevel: 100},
	}
	r := gpio.NewFakeReader([]gpio.Sample{assembled()})
	return r, newSession(cfg, r, nil, start)
}

func assembled() gpio.Sample {
	return gpio.Sample{"front.present": true, "front.locked": true, "front.new": false, "fuel.probe": false}
}

func sample(present, locked, probe bool) gpio.Sample {
	return gpio.Sample{"front.present": present, "front.locked": locked, "front.new": false, "fuel.probe": probe}
}

// scriptedClock returns start, start+step, ... on successive calls and moves
// the reader to its next sample on every call after the first, so tick i
// reads sample i. Only called from runLoop's goroutine.
func scriptedClock(r *gpio.FakeReader, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		if n > 0 {
			r.Advance()
		}
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// driveLoop runs runLoop for nTicks ticks, then sends signal and returns its error.
func driveLoop(t *testing.T, s *pitstop.Session, tr *status.Tracker, heartbeat time.Duration, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(context.Background(), s, tr, heartbeat, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopIdleRigStaysReady(t *testing.T) {
	r, s := oneWheelRig(t)
	tr := status.NewTracker(start, status.Config{})

	if err := driveLoop(t, s, tr, 0, scriptedClock(r, 100*time.Millisecond), 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := tr.Snapshot()
	if snap.Phase != pitstop.PhaseReady {
		t.Errorf("Phase: got %q, want ready", snap.Phase)
	}
	if len(snap.Counts) != 0 {
		t.Errorf("expected no events, got %v", snap.Counts)
	}
	if snap.Ticks != 5 {
		t.Errorf("Ticks: got %d, want 5", snap.Ticks)
	}
}

func TestRunLoopFullPitStop(t *testing.T) {
	r, s := oneWheelRig(t)
	r.Samples = []gpio.Sample{
		assembled(),
		sample(true, false, false),  // nut undone
		sample(false, false, false), // wheel off
		sample(true, false, false),  // replacement hung
		sample(true, true, false),   // nut tightened
		sample(true, true, true),    // probe in, 50
		sample(true, true, true),    // 100, full
		sample(true, true, false),   // probe out
	}
	tr := status.NewTracker(start, status.Config{})

	if err := driveLoop(t, s, tr, 0, scriptedClock(r, time.Second), len(r.Samples), syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := tr.Snapshot()
	if snap.Phase != pitstop.PhaseComplete {
		t.Fatalf("Phase: got %q, want complete", snap.Phase)
	}
	if !snap.Complete {
		t.Error("expected Complete=true")
	}
	if snap.Elapsed != 6*time.Second {
		t.Errorf("Elapsed: got %v, want 6s", snap.Elapsed)
	}

	want := map[pitstop.EventType]int{
		pitstop.EventPitStopStart:    1,
		pitstop.EventWheelRemoved:    1,
		pitstop.EventWheelNew:        1,
		pitstop.EventWheelComplete:   1,
		pitstop.EventProbeIn:         1,
		pitstop.EventTankFull:        1,
		pitstop.EventProbeOut:        1,
		pitstop.EventTankComplete:    1,
		pitstop.EventPitStopComplete: 1,
	}
	for typ, n := range want {
		if snap.Counts[typ] != n {
			t.Errorf("Counts[%s]: got %d, want %d", typ, snap.Counts[typ], n)
		}
	}
	if len(snap.Counts) != len(want) {
		t.Errorf("unexpected event types: %v", snap.Counts)
	}

	// 9 events overflow the history; the newest is the pit stop completing.
	if len(snap.Recent) != status.DefaultHistory {
		t.Fatalf("Recent: got %d, want %d", len(snap.Recent), status.DefaultHistory)
	}
	if last := snap.Recent[len(snap.Recent)-1]; last.Type != pitstop.EventPitStopComplete {
		t.Errorf("newest event: got %s, want PITSTOP_COMPLETE", last.Type)
	}
}

func TestRunLoopHaltsOnInvalidWheel(t *testing.T) {
	r, s := oneWheelRig(t)
	r.Samples = []gpio.Sample{
		assembled(),
		sample(true, false, false),  // running
		sample(false, true, false),  // locked but absent: halt
		sample(false, false, false), // valid again: resume
	}
	tr := status.NewTracker(start, status.Config{})

	if err := driveLoop(t, s, tr, 0, scriptedClock(r, time.Second), len(r.Samples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := tr.Snapshot()
	if snap.Phase != pitstop.PhaseRunning {
		t.Errorf("Phase: got %q, want running", snap.Phase)
	}
	if snap.Counts[pitstop.EventPitStopHalt] != 1 || snap.Counts[pitstop.EventPitStopResume] != 1 {
		t.Errorf("expected one halt and one resume, got %v", snap.Counts)
	}
	// Running 1s..2s, halted 2s..3s.
	if snap.Elapsed != time.Second {
		t.Errorf("Elapsed: got %v, want 1s", snap.Elapsed)
	}
}

func TestRunLoopReadFaultRecovery(t *testing.T) {
	r, s := oneWheelRig(t)
	r.Samples = []gpio.Sample{assembled(), sample(true, false, false)}
	tr := status.NewTracker(start, status.Config{})

	r.Fail("front.locked", errors.New("line busy"))
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	clock := scriptedClock(r, time.Second)
	go func() {
		errCh <- runLoop(context.Background(), s, tr, 0, clock, tick, sig)
	}()

	tick <- time.Time{}
	tick <- time.Time{}
	sig <- syscall.SIGTERM
	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := tr.Snapshot()
	if !snap.Degraded() {
		t.Error("expected degraded snapshot while locked input fails")
	}
	if snap.Phase != pitstop.PhaseReady {
		t.Errorf("Phase: got %q, want ready while wheel state is retained", snap.Phase)
	}

	r.Fail("front.locked", nil)
	go func() {
		errCh <- runLoop(context.Background(), s, tr, 0, clock, tick, sig)
	}()
	tick <- time.Time{}
	sig <- syscall.SIGTERM
	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap = tr.Snapshot()
	if snap.Degraded() {
		t.Error("expected recovery after the fault cleared")
	}
	if snap.Counts[pitstop.EventMonitorDegraded] != 1 || snap.Counts[pitstop.EventMonitorRecovered] != 1 {
		t.Errorf("Counts: got %v", snap.Counts)
	}
	if snap.Phase != pitstop.PhaseRunning {
		t.Errorf("Phase: got %q, want running after unlocked wheel is read", snap.Phase)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	r, s := oneWheelRig(t)
	tr := status.NewTracker(start, status.Config{})

	// Ticks at 0, 5m, 10m, 15m; the 15m tick is due.
	err := driveLoop(t, s, tr, 15*time.Minute, scriptedClock(r, 5*time.Minute), 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	got := tr.Snapshot().LastHeartbeat
	if want := start.Add(15 * time.Minute); !got.Equal(want) {
		t.Errorf("LastHeartbeat: got %v, want %v", got, want)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	r, s := oneWheelRig(t)
	tr := status.NewTracker(start, status.Config{})

	err := driveLoop(t, s, tr, 0, scriptedClock(r, 5*time.Minute), 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !tr.Snapshot().LastHeartbeat.IsZero() {
		t.Error("expected no heartbeat when interval is 0")
	}
}

func TestRunLoopStopsOnContextCancel(t *testing.T) {
	r, s := oneWheelRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runLoop(ctx, s, nil, 0, scriptedClock(r, time.Second), make(chan time.Time), make(chan os.Signal))
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
}

func TestRefreshDisabled(t *testing.T) {
	tr := status.NewTracker(start, status.Config{})
	if err := refresh(context.Background(), tr, &bytes.Buffer{}, nil, 0, ""); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func TestRefreshRendersAndWritesMetrics(t *testing.T) {
	_, s := oneWheelRig(t)
	tr := status.NewTracker(start, status.Config{})
	tr.Update(s, start)

	path := filepath.Join(t.TempDir(), "pitstop.prom")
	var buf bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := refresh(ctx, tr, &buf, metrics.New(), 5*time.Millisecond, path); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if !strings.Contains(buf.String(), "WHEEL") {
		t.Errorf("expected status table, got:\n%s", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), `pitstop_phase{phase="ready"} 1`) {
		t.Errorf("unexpected metrics:\n%s", data)
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}
