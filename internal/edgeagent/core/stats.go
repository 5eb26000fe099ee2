package core

import "time"

// Stats is a point-in-time view of the control loop, used by the run
// summary and by telemetry.
type Stats struct {
	Elapsed time.Duration

	FramesCaptured uint64
	FramesSent     uint64
	FramesDropped  uint64
	CaptureErrors  uint64

	DecisionsApplied uint64
	DecisionsStale   uint64
	InferenceErrors  uint64
	FramesAbandoned  uint64

	// PeakInFlight is the largest number of frames awaiting a decision at
	// once, over all sessions.
	PeakInFlight int

	Reconnects uint64
	LinkState  string

	TargetRate    float64
	EffectiveRate float64
	LatencyEWMA   time.Duration

	LastCommand ControlCommand
}

// FPS is the mean rate of frames sent over the run.
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.FramesSent) / s.Elapsed.Seconds()
}
