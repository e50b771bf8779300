// Command pitstop-rig monitors the wheel and fuel inputs of a pit stop training
// rig over GPIO and times each pit stop.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/pitstop-rig/internal/config"
	"github.com/sweeney/pitstop-rig/internal/display"
	"github.com/sweeney/pitstop-rig/internal/gpio"
	"github.com/sweeney/pitstop-rig/internal/logic"
	"github.com/sweeney/pitstop-rig/internal/metrics"
	"github.com/sweeney/pitstop-rig/internal/pitstop"
	"github.com/sweeney/pitstop-rig/internal/status"
	"github.com/sweeney/pitstop-rig/pkg/log"
)

func main() {
	if err := newRootCommand(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configFile string
	printState bool
	json       bool
	log        *log.Options
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"poll":             "poll",
	"debounce":         "gpio.debounce",
	"chip":             "gpio.chip",
	"inverted":         "gpio.inverted",
	"heartbeat":        "heartbeat",
	"display-interval": "display.interval",
	"metrics-textfile": "metrics.textfile",
}

// newRootCommand binds its flags onto v, which RunE then loads the config from.
func newRootCommand(v *viper.Viper) *cobra.Command {
	opts := &options{log: log.NewOptions()}

	cmd := &cobra.Command{
		Use:          "pitstop-rig",
		Short:        "Time pit stops on the wheel and fuel rig",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if errs := opts.log.Validate(); len(errs) > 0 {
				return errors.Wrap(multierr.Combine(errs...), "invalid log options")
			}
			log.Init(opts.log)
			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
				log.Debug(fmt.Sprintf(format, args...))
			})); err != nil {
				log.Warn("failed to set GOMAXPROCS", "error", err)
			}

			cfg, err := config.Load(v, opts.configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.configFile, "config", "", "YAML config file")
	fs.Duration("poll", 100*time.Millisecond, "GPIO polling interval")
	fs.Duration("debounce", gpio.MinDebounce, "Kernel debounce period for every input")
	fs.String("chip", gpio.DefaultChip, "GPIO character device")
	fs.Bool("inverted", true, "Invert wheel inputs (momentary push buttons)")
	fs.Duration("heartbeat", 5*time.Minute, "Heartbeat interval (0 to disable)")
	fs.Duration("display-interval", time.Second, "Status table refresh interval (0 to disable)")
	fs.String("metrics-textfile", "", "Write Prometheus metrics to this file (empty to disable)")
	fs.BoolVar(&opts.printState, "print-state", false, "Print current state and exit")
	fs.BoolVar(&opts.json, "json", false, "With --print-state, print JSON instead of a table")
	opts.log.AddFlags(fs)

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func run(ctx context.Context, cfg *config.Config, opts *options, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.Pins(), cfg.GPIO.Debounce)
	if err != nil {
		return errors.Wrap(err, "init gpio")
	}
	defer reader.Close()

	startTime := time.Now()
	session := newSession(cfg, reader, log.WithName("session"), startTime)
	tracker := status.NewTracker(startTime, trackerConfig(cfg))

	if opts.printState {
		return printState(ctx, out, session, tracker, opts.json)
	}

	var exporter *metrics.Exporter
	if cfg.Metrics.Textfile != "" {
		exporter = metrics.New()
	}

	log.Info("started",
		"poll", cfg.Poll, "debounce", cfg.GPIO.Debounce, "chip", cfg.GPIO.Chip,
		"polarity", cfg.Polarity(), "wheels", len(cfg.Wheels), "heartbeat", cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return runLoop(gctx, session, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)
	})
	g.Go(func() error {
		return refresh(gctx, tracker, out, exporter, cfg.Display.Interval, cfg.Metrics.Textfile)
	})
	return g.Wait()
}

// newSession builds the configured monitors over r.
func newSession(cfg *config.Config, r logic.LevelReader, logger log.Logger, startTime time.Time) *pitstop.Session {
	wheels := make([]*logic.Wheel, 0, len(cfg.Wheels))
	for _, w := range cfg.Wheels {
		wheels = append(wheels, logic.NewWheel(w.Name,
			logic.Bind(r, w.PresentChannel()),
			logic.Bind(r, w.LockedChannel()),
			logic.Bind(r, w.NewChannel()),
			cfg.Polarity()))
	}
	tank := logic.NewFuelTank(cfg.Tank.Name,
		logic.Bind(r, cfg.Tank.ProbeChannel()),
		logic.WithIncrement(cfg.Tank.Increment),
		logic.WithMaxLevel(cfg.Tank.MaxLevel))
	return pitstop.NewSession(wheels, tank, logger, startTime)
}

func trackerConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.GPIO.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Chip:        cfg.GPIO.Chip,
		Polarity:    cfg.Polarity().String(),
	}
}

// printState reads every input once and prints the result.
func printState(ctx context.Context, out io.Writer, session *pitstop.Session, tracker *status.Tracker, asJSON bool) error {
	now := time.Now()
	session.Tick(ctx, now)
	tracker.Update(session, now)

	snap := tracker.Snapshot()
	if asJSON {
		_, err := fmt.Fprintf(out, "%s\n", status.FormatJSON(snap))
		return err
	}
	return display.Render(out, snap)
}

func runLoop(ctx context.Context, session *pitstop.Session, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	logger := log.WithName("loop")

	for {
		select {
		case <-ctx.Done():
			return nil

		case s := <-sig:
			t := now()
			logger.Info("shutting down",
				"signal", signalName(s), "phase", session.Phase(), "elapsed", session.Elapsed(t))
			return nil

		case <-tick:
			t := now()
			events := session.Tick(ctx, t)
			for _, ev := range events {
				logger.Info("event", "event", string(ev.Type), "monitor", ev.Monitor, "phase", string(ev.Phase))
			}

			if hb := session.CheckHeartbeat(t, heartbeat); hb != nil {
				logger.Info("heartbeat",
					"uptime", hb.Uptime, "phase", string(hb.Phase), "elapsed", hb.Elapsed, "counts", hb.Counts)
				if tracker != nil {
					tracker.Heartbeat(hb.Timestamp)
				}
			}

			if tracker != nil {
				tracker.Record(events...)
				tracker.Update(session, t)
			}
		}
	}
}

// refresh redraws the status table and rewrites the metrics file until ctx is done.
// The metrics file is written once more on the way out.
func refresh(ctx context.Context, tracker *status.Tracker, out io.Writer, exporter *metrics.Exporter, interval time.Duration, textfile string) error {
	if interval <= 0 && exporter == nil {
		return nil
	}
	period := interval
	if period <= 0 {
		period = time.Second
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			writeMetrics(tracker.Snapshot(), exporter, textfile)
			return nil
		case <-ticker.C:
			snap := tracker.Snapshot()
			if interval > 0 {
				if err := display.Render(out, snap); err != nil {
					return errors.Wrap(err, "render status")
				}
			}
			writeMetrics(snap, exporter, textfile)
		}
	}
}

func writeMetrics(snap status.Snapshot, exporter *metrics.Exporter, textfile string) {
	if exporter == nil {
		return
	}
	exporter.Observe(snap)
	if err := exporter.WriteTextfile(textfile); err != nil {
		log.Error(err, "metrics write failed")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
