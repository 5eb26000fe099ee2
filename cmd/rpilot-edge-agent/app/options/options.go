package options

import (
	"fmt"
	"os"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/remotepilot/internal/edgeagent"
	"github.com/autopeer-io/remotepilot/pkg/app"
	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/options"
)

type AgentOptions struct {
	// VehicleID names this car in logs and telemetry. Defaults to the hostname.
	VehicleID string `json:"vehicle-id" mapstructure:"vehicle-id"`

	LinkOptions      *options.LinkOptions      `json:"link" mapstructure:"link"`
	LoopOptions      *options.LoopOptions      `json:"loop" mapstructure:"loop"`
	ReconnectOptions *options.ReconnectOptions `json:"reconnect" mapstructure:"reconnect"`
	HALOptions       *options.HALOptions       `json:"hal" mapstructure:"hal"`
	MqttOptions      *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*AgentOptions)(nil)
	_ app.LogOptionsProvider  = (*AgentOptions)(nil)
)

func NewAgentOptions() *AgentOptions {
	o := &AgentOptions{
		LinkOptions:      options.NewLinkOptions(),
		LoopOptions:      options.NewLoopOptions(),
		ReconnectOptions: options.NewReconnectOptions(),
		HALOptions:       options.NewHALOptions(),
		MqttOptions:      options.NewMqttOptions(),
		HttpOptions:      options.NewHttpOptions(),
		Log:              log.NewOptions(),
	}

	return o
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fss.FlagSet("agent").StringVar(&o.VehicleID, "vehicle-id", o.VehicleID, "Identity of this vehicle. Defaults to the hostname.")
	o.LinkOptions.AddFlags(fss.FlagSet("link"))
	o.LoopOptions.AddFlags(fss.FlagSet("loop"))
	o.ReconnectOptions.AddFlags(fss.FlagSet("reconnect"))
	o.HALOptions.AddFlags(fss.FlagSet("hal"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *AgentOptions) Complete() error {
	if o.VehicleID == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("no --vehicle-id given and the hostname is unavailable: %w", err)
		}
		o.VehicleID = host
	}
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.LinkOptions.Validate()...)
	errs = append(errs, o.LoopOptions.Validate()...)
	errs = append(errs, o.ReconnectOptions.Validate()...)
	errs = append(errs, o.HALOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) LogOptions() *log.Options {
	return o.Log.WithFields("role", "edge-agent", "vehicle", o.VehicleID)
}

func (o *AgentOptions) Config() (*edgeagent.Config, error) {
	return &edgeagent.Config{
		VehicleID:        o.VehicleID,
		LinkOptions:      o.LinkOptions,
		LoopOptions:      o.LoopOptions,
		ReconnectOptions: o.ReconnectOptions,
		HALOptions:       o.HALOptions,
		MqttOptions:      o.MqttOptions,
		HttpOptions:      o.HttpOptions,
	}, nil
}
