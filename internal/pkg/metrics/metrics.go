package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Edge agent metrics.
var (
	// FramesTotal counts captured frames by what became of them.
	// outcome: sent, dropped, replaced, capture_error
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpilot_edge_frames_total",
			Help: "Captured frames by outcome.",
		},
		[]string{"outcome"},
	)

	// DecisionsTotal counts received decisions by how they were handled.
	// outcome: applied, stale, inference_error, abandoned
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpilot_edge_decisions_total",
			Help: "Decisions received from the inference service by outcome.",
		},
		[]string{"outcome"},
	)

	// RoundTripLatency is the time from frame capture to command application.
	RoundTripLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rpilot_edge_round_trip_seconds",
			Help:    "Latency from frame capture to command application.",
			Buckets: []float64{.01, .02, .03, .05, .075, .1, .15, .2, .3, .5, 1},
		},
	)

	// LinkState is 1 for the current link state and 0 for all others.
	LinkState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rpilot_edge_link_state",
			Help: "Current state of the link to the inference service.",
		},
		[]string{"state"},
	)

	// ReconnectAttempts counts connection attempts by result.
	ReconnectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpilot_edge_connect_attempts_total",
			Help: "Connection attempts to the inference service.",
		},
		[]string{"result"},
	)

	// LoopRate is the effective capture rate after throttling.
	LoopRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rpilot_edge_loop_rate_hz",
			Help: "Effective control loop rate in frames per second.",
		},
	)

	// CommandsTotal counts commands applied to the actuator.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpilot_edge_commands_total",
			Help: "Commands applied to the actuator by direction and reason.",
		},
		[]string{"direction", "reason"},
	)
)

// Inference service metrics.
var (
	// ActiveSessions is the number of connected edge agents.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rpilot_inference_active_sessions",
			Help: "Number of open sessions.",
		},
	)

	// PredictionsTotal counts predictions by status (ok, error).
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpilot_inference_predictions_total",
			Help: "Predictions by status.",
		},
		[]string{"status"},
	)

	// PredictionLatency is the time spent in the predictor, including the device queue.
	PredictionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpilot_inference_prediction_seconds",
			Help:    "Time spent predicting one frame, including the wait for the device.",
			Buckets: []float64{.002, .005, .01, .02, .03, .05, .1, .2, .5},
		},
		[]string{"predictor"},
	)

	// SessionsClosed counts ended sessions by reason (eos, protocol, transport, idle, shutdown).
	SessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpilot_inference_sessions_closed_total",
			Help: "Ended sessions by reason.",
		},
		[]string{"reason"},
	)

	// ArchivedFrames counts failed frames handed to the object store by result.
	ArchivedFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpilot_inference_archived_frames_total",
			Help: "Frames with failed predictions uploaded to the archive.",
		},
		[]string{"result"},
	)
)

// init registers all collectors with the default registry served on /metrics.
func init() {
	prometheus.MustRegister(
		FramesTotal,
		DecisionsTotal,
		RoundTripLatency,
		LinkState,
		ReconnectAttempts,
		LoopRate,
		CommandsTotal,
		ActiveSessions,
		PredictionsTotal,
		PredictionLatency,
		SessionsClosed,
		ArchivedFrames,
	)
}
