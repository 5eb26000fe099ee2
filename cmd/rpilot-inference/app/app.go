package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/remotepilot/cmd/rpilot-inference/app/options"
	"github.com/autopeer-io/remotepilot/pkg/app"
)

const (
	commandName = "rpilot-inference"
	commandDesc = `The Remotepilot Inference Service receives camera frames from edge agents
and answers each one, in order, with a steering decision from the configured
predictor.`
)

func NewApp() *app.App {
	opts := options.NewInferenceOptions()
	application := app.NewApp(
		commandName,
		"Launch a Remotepilot inference service",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.InferenceOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		inf, err := cfg.NewInference()
		if err != nil {
			return fmt.Errorf("failed to create inference service: %w", err)
		}

		return inf.Run(ctx)
	}
}
