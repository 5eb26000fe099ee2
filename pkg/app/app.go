package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/component-base/term"
	"k8s.io/klog/v2"

	"github.com/autopeer-io/remotepilot/pkg/log"
)

const configFlagName = "config"

// App is a cobra command wired with grouped flags, an optional config file,
// environment overrides and the global logger.
type App struct {
	name           string
	shortDesc      string
	description    string
	envPrefix      string
	options        NamedFlagSetOptions
	runFunc        RunFunc
	args           cobra.PositionalArgs
	onConfigChange ConfigChangeFunc

	configFile string
	viper      *viper.Viper
	cmd        *cobra.Command
}

// NewApp builds the command described by opts.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
		envPrefix: "RPILOT",
		viper:     viper.New(),
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command and exits the process with status 1 on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
		RunE:          a.runCommand,
	}

	var namedfs cliflag.NamedFlagSets
	if a.options != nil {
		namedfs = a.options.Flags()
	}
	namedfs.FlagSet("global").StringVar(&a.configFile, configFlagName, "",
		"Path to a YAML/JSON/TOML config file. Flags and environment variables take precedence.")
	globalflag.AddGlobalFlags(namedfs.FlagSet("global"), cmd.Name())

	fs := cmd.Flags()
	for _, f := range namedfs.FlagSets {
		fs.AddFlagSet(f)
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedfs, cols)

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if a.options != nil {
		if err := a.loadConfig(cmd); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return err
		}

		if err := a.options.Complete(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: failed to complete options: %v\n", err)
			return err
		}

		if err := a.options.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: invalid options: %v\n", err)
			return err
		}

		if p, ok := a.options.(LogOptionsProvider); ok {
			log.Init(p.LogOptions())
		}
	}

	klog.SetLogger(log.Std().Logr())
	defer func() { _ = log.Sync() }()

	if a.runFunc == nil {
		return nil
	}

	if err := a.runFunc(); err != nil {
		log.Error(err, "Command failed", "command", a.name)
		return err
	}
	return nil
}

// loadConfig merges the config file and environment into the options.
// Precedence: explicit flag > environment > config file > default.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper

	if a.envPrefix != "" {
		v.SetEnvPrefix(a.envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", a.configFile, err)
		}
	}

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}

	if a.configFile != "" && a.onConfigChange != nil {
		v.OnConfigChange(func(e fsnotify.Event) {
			a.onConfigChange(v, e)
		})
		v.WatchConfig()
	}

	return nil
}
