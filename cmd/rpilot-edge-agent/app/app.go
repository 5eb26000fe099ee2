package app

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/remotepilot/cmd/rpilot-edge-agent/app/options"
	"github.com/autopeer-io/remotepilot/internal/edgeagent"
	"github.com/autopeer-io/remotepilot/pkg/app"
	"github.com/autopeer-io/remotepilot/pkg/log"
	genericoptions "github.com/autopeer-io/remotepilot/pkg/options"
)

const (
	commandName = "rpilot-edge-agent"
	commandDesc = `The Remotepilot Edge Agent runs on the car. It streams camera frames to
rpilot-inference, applies the steering decisions it gets back to the motors,
and stops the car whenever the link or the hardware fails.`
)

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	var running atomic.Pointer[edgeagent.EdgeAgent]

	application := app.NewApp(
		commandName,
		"Launch a Remotepilot edge agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithConfigWatch(reloadConfig(&running)),
		app.WithRunFunc(run(opts, &running)),
	)
	return application
}

func run(opts *options.AgentOptions, running *atomic.Pointer[edgeagent.EdgeAgent]) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewEdgeAgent()
		if err != nil {
			return fmt.Errorf("failed to create edge agent: %w", err)
		}
		running.Store(agent)

		return agent.Run(ctx)
	}
}

// reloadConfig applies the log level and the loop section of a changed
// config file. Other sections need a restart.
func reloadConfig(running *atomic.Pointer[edgeagent.EdgeAgent]) app.ConfigChangeFunc {
	return func(v *viper.Viper, e fsnotify.Event) {
		if lvl := v.GetString("log.level"); lvl != "" && lvl != log.Level() {
			if err := log.SetLevel(lvl); err != nil {
				log.Error(err, "Ignoring invalid reloaded log level", "file", e.Name)
			} else {
				log.Info("Log level changed", "level", lvl)
			}
		}

		agent := running.Load()
		if agent == nil {
			return
		}

		loop, err := reloadedLoop(v)
		if err != nil {
			log.Error(err, "Failed to decode reloaded loop settings", "file", e.Name)
			return
		}
		if err := utilerrors.NewAggregate(loop.Validate()); err != nil {
			log.Error(err, "Ignoring invalid reloaded loop settings", "file", e.Name)
			return
		}
		agent.UpdateLoop(loop)
	}
}

// reloadedLoop decodes the loop section the way the initial load does, so
// flags and environment keep precedence over the file.
func reloadedLoop(v *viper.Viper) (*genericoptions.LoopOptions, error) {
	opts := options.NewAgentOptions()
	if err := v.Unmarshal(opts); err != nil {
		return nil, err
	}
	return opts.LoopOptions, nil
}
