package log

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Options configures the logger.
type Options struct {
	Name          string   `mapstructure:"name"`
	Level         string   `mapstructure:"level"`
	Format        string   `mapstructure:"format"` // "console" or "json"
	EnableColor   bool     `mapstructure:"enable-color"`
	DisableCaller bool     `mapstructure:"disable-caller"`
	CallerSkip    int      `mapstructure:"caller-skip"`
	OutputPaths   []string `mapstructure:"output-paths"`
}

// NewOptions returns defaults suited to running under systemd on the Pi.
func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		CallerSkip:  1,
		OutputPaths: []string{"stderr"},
	}
}

// Validate reports unusable option values.
func (o *Options) Validate() []error {
	var errs []error
	switch o.Format {
	case "console", "json":
	default:
		errs = append(errs, errors.Errorf("log.format must be console or json, got %q", o.Format))
	}
	switch o.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, errors.Errorf("log.level must be debug, info, warn or error, got %q", o.Level))
	}
	return errs
}

// AddFlags binds the options to fs under the "log." prefix.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "log.name", o.Name, "Optional logger name.")
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log level (debug, info, warn, error).")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log output format (console or json).")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Colorize levels in console format.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit file:line from log entries.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log destinations (stdout, stderr or file paths).")
}
