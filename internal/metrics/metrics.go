// Package metrics exposes rig state as Prometheus metrics written to a
// node_exporter textfile collector directory.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/pitstop-rig/internal/pitstop"
	"github.com/sweeney/pitstop-rig/internal/status"
)

var phases = []pitstop.Phase{
	pitstop.PhaseReady,
	pitstop.PhaseRunning,
	pitstop.PhaseHalted,
	pitstop.PhaseComplete,
}

// Exporter owns a private registry holding the rig metrics.
type Exporter struct {
	reg *prometheus.Registry

	wheelPresent  *prometheus.GaugeVec
	wheelLocked   *prometheus.GaugeVec
	wheelValid    *prometheus.GaugeVec
	wheelComplete *prometheus.GaugeVec
	wheelDegraded *prometheus.GaugeVec

	tankLevel    prometheus.Gauge
	tankProbe    prometheus.Gauge
	tankFull     prometheus.Gauge
	tankComplete prometheus.Gauge

	phase   *prometheus.GaugeVec
	elapsed prometheus.Gauge
	events  *prometheus.CounterVec

	// exported holds the event counts already added to events.
	exported map[pitstop.EventType]int
}

// New creates an Exporter with all metrics registered.
func New() *Exporter {
	wheelGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pitstop",
			Subsystem: "wheel",
			Name:      name,
			Help:      help,
		}, []string{"wheel"})
	}
	tankGauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pitstop",
			Subsystem: "tank",
			Name:      name,
			Help:      help,
		})
	}

	e := &Exporter{
		reg:           prometheus.NewRegistry(),
		wheelPresent:  wheelGauge("present", "Wheel hangs on the hub (1) or not (0)."),
		wheelLocked:   wheelGauge("locked", "Wheel nut tightened (1) or not (0)."),
		wheelValid:    wheelGauge("valid", "Wheel sensors consistent (1) or locked-but-absent (0)."),
		wheelComplete: wheelGauge("complete", "Replacement wheel mounted and locked."),
		wheelDegraded: wheelGauge("degraded", "Last read of a wheel input failed."),
		tankLevel:     tankGauge("level", "Simulated fuel level."),
		tankProbe:     tankGauge("probe", "Fuel probe inserted."),
		tankFull:      tankGauge("full", "Tank reached its maximum level."),
		tankComplete:  tankGauge("complete", "Tank filled and probe withdrawn."),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pitstop",
			Name:      "phase",
			Help:      "Current pit stop phase (1 for the active phase).",
		}, []string{"phase"}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pitstop",
			Name:      "elapsed_seconds",
			Help:      "Pit stop time excluding halts.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitstop",
			Name:      "events_total",
			Help:      "Rig events observed since startup.",
		}, []string{"type"}),
		exported: make(map[pitstop.EventType]int),
	}

	e.reg.MustRegister(
		e.wheelPresent, e.wheelLocked, e.wheelValid, e.wheelComplete, e.wheelDegraded,
		e.tankLevel, e.tankProbe, e.tankFull, e.tankComplete,
		e.phase, e.elapsed, e.events,
	)
	return e
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.reg
}

// Observe sets every metric from snap.
func (e *Exporter) Observe(snap status.Snapshot) {
	for _, w := range snap.Wheels {
		e.wheelPresent.WithLabelValues(w.Name).Set(b2f(w.Present))
		e.wheelLocked.WithLabelValues(w.Name).Set(b2f(w.Locked))
		e.wheelValid.WithLabelValues(w.Name).Set(b2f(w.Valid))
		e.wheelComplete.WithLabelValues(w.Name).Set(b2f(w.Complete))
		e.wheelDegraded.WithLabelValues(w.Name).Set(b2f(w.Degraded))
	}

	e.tankLevel.Set(snap.Tank.Level)
	e.tankProbe.Set(b2f(snap.Tank.Probe))
	e.tankFull.Set(b2f(snap.Tank.Full))
	e.tankComplete.Set(b2f(snap.Tank.Complete))

	for _, p := range phases {
		e.phase.WithLabelValues(string(p)).Set(b2f(p == snap.Phase))
	}
	e.elapsed.Set(snap.Elapsed.Seconds())

	for typ, n := range snap.Counts {
		if d := n - e.exported[typ]; d > 0 {
			e.events.WithLabelValues(string(typ)).Add(float64(d))
			e.exported[typ] = n
		}
	}
}

// WriteTextfile atomically writes the registry to path in the text exposition format.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.reg); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
