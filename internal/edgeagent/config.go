package edgeagent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/internal/edgeagent/hal"
	"github.com/autopeer-io/remotepilot/internal/edgeagent/link"
	"github.com/autopeer-io/remotepilot/internal/edgeagent/telemetry"
	"github.com/autopeer-io/remotepilot/internal/pkg/server"
	httpserver "github.com/autopeer-io/remotepilot/internal/pkg/server/http"
	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/options"
)

// Config is the complete configuration of the edge agent process.
type Config struct {
	VehicleID string

	LinkOptions      *options.LinkOptions
	LoopOptions      *options.LoopOptions
	ReconnectOptions *options.ReconnectOptions
	HALOptions       *options.HALOptions
	MqttOptions      *options.MqttOptions
	HttpOptions      *options.HttpOptions
}

// EdgeAgent wires the agent with its hardware and side servers.
type EdgeAgent struct {
	agent    *Agent
	source   core.FrameSource
	actuator core.Actuator
	reporter *telemetry.Reporter
	http     *httpserver.Server
}

// NewEdgeAgent opens the hardware and builds the agent.
func (cfg *Config) NewEdgeAgent() (*EdgeAgent, error) {
	if cfg.VehicleID == "" {
		return nil, errors.New("vehicle ID is required")
	}

	source, err := hal.NewFrameSource(cfg.HALOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame source: %w", err)
	}
	actuator, err := hal.NewActuator(cfg.HALOptions)
	if err != nil {
		release(source, "frame source")
		return nil, fmt.Errorf("failed to open actuator: %w", err)
	}

	ea := &EdgeAgent{source: source, actuator: actuator}

	var agentOpts []Option
	if cfg.MqttOptions.Enabled() {
		// The reporter reads stats through ea.agent, set below.
		ea.reporter, err = telemetry.New(cfg.MqttOptions, cfg.VehicleID, func() core.Stats { return ea.agent.Stats() })
		if err != nil {
			release(actuator, "actuator")
			release(source, "frame source")
			return nil, err
		}
		agentOpts = append(agentOpts, WithAlerter(ea.reporter))
	}

	ea.agent = NewAgent(
		cfg.VehicleID,
		source,
		actuator,
		link.New(cfg.LinkOptions, nil),
		cfg.LinkOptions,
		cfg.LoopOptions,
		cfg.ReconnectOptions,
		cfg.HALOptions.MaxCaptureErrors,
		agentOpts...,
	)

	if cfg.HttpOptions.Enabled() {
		ea.http = httpserver.NewServer(cfg.HttpOptions, ea.agent.Ready)
	}

	return ea, nil
}

// UpdateLoop applies reloaded loop settings to the running agent.
func (ea *EdgeAgent) UpdateLoop(opts *options.LoopOptions) {
	ea.agent.UpdateLoop(opts)
}

// Run drives the vehicle until ctx is done or the agent fails.
func (ea *EdgeAgent) Run(ctx context.Context) error {
	defer release(ea.source, "frame source")
	defer release(ea.actuator, "actuator")

	// Side servers stop when the agent does, whatever the reason.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	servers := []server.Server{
		server.ServerFunc(func(ctx context.Context) error {
			defer cancel()
			return ea.agent.Run(ctx)
		}),
	}
	if ea.reporter != nil {
		servers = append(servers, ea.reporter)
	}
	if ea.http != nil {
		servers = append(servers, ea.http)
	}

	return server.NewManager(servers...).Start(ctx)
}

// release closes hardware that holds OS resources: GPIO pins, the camera
// pipeline.
func release(dev any, name string) {
	if c, ok := dev.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Error(err, "Failed to release "+name)
		}
	}
}
