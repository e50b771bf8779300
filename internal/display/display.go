// Package display renders rig status as plain text tables for the console.
package display

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"

	"github.com/sweeney/pitstop-rig/internal/status"
)

// Render writes the wheel, tank and pit stop tables for snap to w.
func Render(w io.Writer, snap status.Snapshot) error {
	wheels := uitable.New()
	wheels.Separator = "  "
	wheels.AddRow("WHEEL", "PRESENT", "LOCKED", "NEW", "VALID", "COMPLETE")
	for _, wh := range snap.Wheels {
		name := wh.Name
		if wh.Degraded {
			name += " (degraded)"
		}
		valid := yesNo(wh.Valid)
		if !wh.Valid {
			valid = "NO - locked but absent"
		}
		wheels.AddRow(name, yesNo(wh.Present), yesNo(wh.Locked), yesNo(wh.IsNew), valid, yesNo(wh.Complete))
	}

	tank := uitable.New()
	tank.Separator = "  "
	tank.AddRow("TANK", "PROBE", "LEVEL", "FULL", "COMPLETE")
	tankName := snap.Tank.Name
	if snap.Tank.Degraded {
		tankName += " (degraded)"
	}
	tank.AddRow(tankName, yesNo(snap.Tank.Probe), levelBar(snap.Tank.Level, snap.Tank.MaxLevel), yesNo(snap.Tank.Full), yesNo(snap.Tank.Complete))

	summary := uitable.New()
	summary.AddRow("Pit stop:", phaseLabel(snap))
	summary.AddRow("Elapsed:", formatElapsed(snap.Elapsed))
	summary.AddRow("Uptime:", snap.Uptime().Truncate(time.Second).String())

	if _, err := fmt.Fprintf(w, "%s\n\n%s\n\n%s\n", wheels, tank, summary); err != nil {
		return err
	}
	if len(snap.Recent) == 0 {
		return nil
	}

	recent := uitable.New()
	recent.Separator = "  "
	recent.AddRow("TIME", "EVENT", "MONITOR", "PHASE")
	for i := len(snap.Recent) - 1; i >= 0; i-- {
		ev := snap.Recent[i]
		recent.AddRow(ev.Timestamp.Format("15:04:05.0"), ev.Type, dash(ev.Monitor), ev.Phase)
	}
	_, err := fmt.Fprintf(w, "\n%s\n", recent)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func phaseLabel(snap status.Snapshot) string {
	if snap.Phase == "" {
		return "UNKNOWN"
	}
	if snap.Degraded() {
		return fmt.Sprintf("%s (input fault)", snap.Phase)
	}
	return string(snap.Phase)
}

// levelBar draws e.g. "[#####.....]  50.0%".
func levelBar(level, max float64) string {
	const width = 20
	if max <= 0 {
		return "n/a"
	}
	filled := int(level / max * width)
	if filled > width {
		filled = width
	}
	bar := make([]byte, width)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = '.'
		}
	}
	return fmt.Sprintf("[%s] %5.1f%%", bar, level/max*100)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(100 * time.Millisecond)
	m := int(d.Minutes())
	s := d.Seconds() - float64(m*60)
	if m > 0 {
		return fmt.Sprintf("%dm %04.1fs", m, s)
	}
	return fmt.Sprintf("%.1fs", s)
}
