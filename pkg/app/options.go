package app

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/remotepilot/pkg/log"
)

// NamedFlagSetOptions is implemented by the top-level options of a command.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by concern, e.g. "link", "loop", "log".
	Flags() cliflag.NamedFlagSets

	// Complete fills in fields derived from other fields.
	Complete() error

	// Validate returns an aggregate of all validation errors.
	Validate() error
}

// LogOptionsProvider is implemented by options that carry a logger configuration.
// The App initializes the global logger from it before running.
type LogOptionsProvider interface {
	LogOptions() *log.Options
}

// RunFunc is the entrypoint of a command, called once options are complete and valid.
type RunFunc func() error

// ConfigChangeFunc is called with the reloaded configuration after the
// config file changed on disk.
type ConfigChangeFunc func(v *viper.Viper, e fsnotify.Event)

// Option configures an App.
type Option func(*App)

// WithDescription sets the long description of the command.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions sets the options the command reads flags and config into.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the function executed by the command.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithDefaultValidArgs rejects any positional argument.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = cobra.NoArgs
	}
}

// WithEnvPrefix sets the prefix of environment variables overriding flags,
// e.g. RPILOT_LINK_SERVER for --link.server.
func WithEnvPrefix(prefix string) Option {
	return func(a *App) {
		a.envPrefix = prefix
	}
}

// WithConfigWatch watches the config file and calls fn on every change.
func WithConfigWatch(fn ConfigChangeFunc) Option {
	return func(a *App) {
		a.onConfigChange = fn
	}
}
