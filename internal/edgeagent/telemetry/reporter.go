// Package telemetry publishes control loop statistics and alerts over MQTT.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/remotepilot/pkg/mqtt/topic"
	"github.com/autopeer-io/remotepilot/pkg/options"
)

// StatsFunc returns the current loop statistics.
type StatsFunc func() core.Stats

// Reporter periodically publishes loop statistics and keeps a retained
// online status for the vehicle.
type Reporter struct {
	client    mqtt.Publisher
	topics    *mqtttopic.Builder
	vehicleID string
	interval  time.Duration
	stats     StatsFunc

	// up is signalled on every broker (re)connection.
	up chan struct{}
}

// New creates a reporter and its MQTT client. The broker publishes an
// offline status on the online topic if the agent vanishes, and the
// reporter restores the online status after every reconnection.
func New(opts *options.MqttOptions, vehicleID string, stats StatsFunc) (*Reporter, error) {
	topics := mqtttopic.NewBuilder(opts.TopicRoot)
	r := NewReporter(nil, topics, vehicleID, opts.Interval, stats)

	cfg := opts.ToClientConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("rpilot-edge-%s", vehicleID)
	}

	will, err := onlinePayload(vehicleID, false, "unexpected_disconnect")
	if err != nil {
		return nil, err
	}
	cfg.Will = &mqtt.Message{Topic: topics.Online(vehicleID), QoS: 1, Retain: true, Payload: will}
	cfg.OnConnect = r.Connected

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mqtt client: %w", err)
	}
	r.client = client
	return r, nil
}

// NewReporter creates a reporter publishing through client.
func NewReporter(client mqtt.Publisher, topics *mqtttopic.Builder, vehicleID string, interval time.Duration, stats StatsFunc) *Reporter {
	return &Reporter{
		client:    client,
		topics:    topics,
		vehicleID: vehicleID,
		interval:  interval,
		stats:     stats,
		up:        make(chan struct{}, 1),
	}
}

// Connected tells the reporter the broker connection came up. It never
// blocks.
func (r *Reporter) Connected() {
	select {
	case r.up <- struct{}{}:
	default:
	}
}

// Start connects and reports until ctx is done, then publishes the offline
// status and disconnects. A missing broker never stops the agent.
func (r *Reporter) Start(ctx context.Context) error {
	if err := r.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mqtt client: %w", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-r.up:
			r.publishOnline(ctx, true, "connected")
		case <-ticker.C:
			if err := r.Report(ctx); err != nil && !errors.Is(err, mqtt.ErrOffline) {
				log.Debug("Telemetry report not published", "error", err)
			}
		}
	}
}

// Report publishes the current statistics once.
func (r *Reporter) Report(ctx context.Context) error {
	payload, err := statsPayload(r.vehicleID, r.stats())
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, mqtt.Message{Topic: r.topics.Telemetry(r.vehicleID), Payload: payload})
}

// Alert publishes a fatal condition. It waits at most a few seconds for the
// broker, as it is called on the way out.
func (r *Reporter) Alert(ctx context.Context, kind string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	fields := map[string]any{
		"vehicleId": r.vehicleID,
		"kind":      kind,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}

	payload, err := marshal(fields)
	if err == nil {
		err = r.client.Publish(ctx, mqtt.Message{Topic: r.topics.Alert(r.vehicleID), QoS: 1, Payload: payload})
	}
	if err != nil {
		log.Warn("Failed to publish alert", "kind", kind, "error", err)
	}
}

func (r *Reporter) publishOnline(ctx context.Context, online bool, reason string) {
	payload, err := onlinePayload(r.vehicleID, online, reason)
	if err == nil {
		err = r.client.Publish(ctx, mqtt.Message{Topic: r.topics.Online(r.vehicleID), QoS: 1, Retain: true, Payload: payload})
	}
	if err != nil {
		log.Warn("Failed to publish online status", "online", online, "error", err)
	}
}

func (r *Reporter) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if r.client.Connected() {
		if err := r.Report(ctx); err != nil {
			log.Debug("Final telemetry report not published", "error", err)
		}
		r.publishOnline(ctx, false, "shutdown")
	}
	r.client.Disconnect(ctx)
}

func onlinePayload(vehicleID string, online bool, reason string) ([]byte, error) {
	return marshal(map[string]any{
		"vehicleId": vehicleID,
		"online":    online,
		"reason":    reason,
	})
}

func statsPayload(vehicleID string, s core.Stats) ([]byte, error) {
	return marshal(map[string]any{
		"vehicleId":        vehicleID,
		"timestamp":        time.Now().UTC().Format(time.RFC3339Nano),
		"elapsedSeconds":   s.Elapsed.Seconds(),
		"linkState":        s.LinkState,
		"framesCaptured":   s.FramesCaptured,
		"framesSent":       s.FramesSent,
		"framesDropped":    s.FramesDropped,
		"captureErrors":    s.CaptureErrors,
		"decisionsApplied": s.DecisionsApplied,
		"decisionsStale":   s.DecisionsStale,
		"inferenceErrors":  s.InferenceErrors,
		"framesAbandoned":  s.FramesAbandoned,
		"peakInFlight":     s.PeakInFlight,
		"reconnects":       s.Reconnects,
		"targetRate":       s.TargetRate,
		"effectiveRate":    s.EffectiveRate,
		"latencyMs":        float64(s.LatencyEWMA) / float64(time.Millisecond),
		"fps":              s.FPS(),
		"lastCommand":      s.LastCommand.Direction.String(),
	})
}

func marshal(fields map[string]any) ([]byte, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}
	return protojson.Marshal(st)
}
