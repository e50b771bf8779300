// Package config loads the rig configuration from defaults, an optional YAML
// file, PITSTOP_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/sweeney/pitstop-rig/internal/gpio"
	"github.com/sweeney/pitstop-rig/internal/logic"
)

// EnvPrefix prefixes every environment override, e.g. PITSTOP_GPIO_CHIP.
const EnvPrefix = "PITSTOP"

// Config is the complete daemon configuration.
type Config struct {
	GPIO      GPIOConfig    `mapstructure:"gpio"`
	Poll      time.Duration `mapstructure:"poll"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
	Display   DisplayConfig `mapstructure:"display"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
	Wheels    []WheelConfig `mapstructure:"wheels"`
	Tank      TankConfig    `mapstructure:"tank"`
}

// GPIOConfig selects the controller and input behaviour.
type GPIOConfig struct {
	Chip     string        `mapstructure:"chip"`
	Debounce time.Duration `mapstructure:"debounce"`
	// Inverted flips wheel inputs for rigs built from momentary push buttons.
	Inverted bool `mapstructure:"inverted"`
}

// DisplayConfig controls the console status table.
type DisplayConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables
}

// MetricsConfig controls the node_exporter textfile output.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // empty disables
}

// WheelConfig maps one wheel's inputs to BCM offsets.
type WheelConfig struct {
	Name    string `mapstructure:"name"`
	Present int    `mapstructure:"present"`
	Locked  int    `mapstructure:"locked"`
	New     int    `mapstructure:"new"`
}

// TankConfig maps the fuel probe and fill parameters.
type TankConfig struct {
	Name      string  `mapstructure:"name"`
	Probe     int     `mapstructure:"probe"`
	Increment float64 `mapstructure:"increment"`
	MaxLevel  float64 `mapstructure:"max_level"`
}

// PresentChannel is the gpio.Reader channel name of the present input.
func (w WheelConfig) PresentChannel() string { return w.Name + ".present" }
func (w WheelConfig) LockedChannel() string  { return w.Name + ".locked" }
func (w WheelConfig) NewChannel() string     { return w.Name + ".new" }

// ProbeChannel is the gpio.Reader channel name of the fuel probe.
func (t TankConfig) ProbeChannel() string { return t.Name + ".probe" }

// Polarity returns the polarity to apply to wheel inputs.
func (c *Config) Polarity() logic.Polarity {
	return logic.Polarity(c.GPIO.Inverted)
}

// Pins returns every input as channel name -> BCM offset.
func (c *Config) Pins() map[string]int {
	pins := make(map[string]int, 3*len(c.Wheels)+1)
	for _, w := range c.Wheels {
		pins[w.PresentChannel()] = w.Present
		pins[w.LockedChannel()] = w.Locked
		pins[w.NewChannel()] = w.New
	}
	pins[c.Tank.ProbeChannel()] = c.Tank.Probe
	return pins
}

// SetDefaults registers the stock rig layout on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.debounce", gpio.MinDebounce)
	v.SetDefault("gpio.inverted", true)
	v.SetDefault("poll", 100*time.Millisecond)
	v.SetDefault("heartbeat", 5*time.Minute)
	v.SetDefault("display.interval", time.Second)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("wheels", []map[string]any{
		{"name": "front", "present": 5, "locked": 6, "new": 13},
		{"name": "rear", "present": 19, "locked": 26, "new": 21},
	})
	v.SetDefault("tank.name", "fuel")
	v.SetDefault("tank.probe", 20)
	v.SetDefault("tank.increment", logic.DefaultIncrement)
	v.SetDefault("tank.max_level", logic.DefaultMaxLevel)
}

// Load reads configuration into a validated Config. file may be empty.
// Flags should already be bound to v by the caller.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem in c at once.
func (c *Config) Validate() error {
	var errs error

	if c.GPIO.Chip == "" {
		errs = multierr.Append(errs, errors.New("gpio.chip is required"))
	}
	if c.GPIO.Debounce < gpio.MinDebounce {
		errs = multierr.Append(errs, errors.Errorf("gpio.debounce must be at least %v, got %v", gpio.MinDebounce, c.GPIO.Debounce))
	}
	if c.Poll <= 0 {
		errs = multierr.Append(errs, errors.Errorf("poll must be positive, got %v", c.Poll))
	}
	if c.Heartbeat < 0 {
		errs = multierr.Append(errs, errors.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if c.Display.Interval < 0 {
		errs = multierr.Append(errs, errors.Errorf("display.interval must not be negative, got %v", c.Display.Interval))
	}
	if len(c.Wheels) == 0 {
		errs = multierr.Append(errs, errors.New("at least one wheel is required"))
	}

	names := make(map[string]bool)
	pins := make(map[int]string)
	usePin := func(owner string, pin int) {
		if pin < 0 {
			errs = multierr.Append(errs, errors.Errorf("%s: pin %d is negative", owner, pin))
			return
		}
		if prev, ok := pins[pin]; ok {
			errs = multierr.Append(errs, errors.Errorf("%s: pin %d already used by %s", owner, pin, prev))
			return
		}
		pins[pin] = owner
	}
	useName := func(name string) {
		if name == "" {
			errs = multierr.Append(errs, errors.New("monitor name is required"))
			return
		}
		if names[name] {
			errs = multierr.Append(errs, errors.Errorf("duplicate monitor name %q", name))
		}
		names[name] = true
	}

	for _, w := range c.Wheels {
		useName(w.Name)
		usePin(w.PresentChannel(), w.Present)
		usePin(w.LockedChannel(), w.Locked)
		usePin(w.NewChannel(), w.New)
	}
	useName(c.Tank.Name)
	usePin(c.Tank.ProbeChannel(), c.Tank.Probe)

	if c.Tank.Increment <= 0 {
		errs = multierr.Append(errs, errors.Errorf("tank.increment must be positive, got %v", c.Tank.Increment))
	}
	if c.Tank.MaxLevel <= 0 {
		errs = multierr.Append(errs, errors.Errorf("tank.max_level must be positive, got %v", c.Tank.MaxLevel))
	}

	if errs != nil {
		return errors.Wrap(errs, "invalid config")
	}
	return nil
}
