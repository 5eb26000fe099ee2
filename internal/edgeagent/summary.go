package edgeagent

import (
	"fmt"
	"time"

	"github.com/gosuri/uitable"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
)

// Stats returns the loop statistics of the run so far.
func (a *Agent) Stats() core.Stats {
	var elapsed time.Duration
	if started := a.started.Load(); started != 0 {
		end := a.clock.Now().UnixNano()
		if stopped := a.stopped.Load(); stopped != 0 {
			end = stopped
		}
		elapsed = time.Duration(end - started)
	}

	snap := a.driver.Snapshot()
	return core.Stats{
		Elapsed:          elapsed,
		FramesCaptured:   a.stats.captured.Load(),
		FramesSent:       a.stats.sent.Load(),
		FramesDropped:    a.stats.dropped.Load(),
		CaptureErrors:    a.stats.captureErrors.Load(),
		DecisionsApplied: a.stats.applied.Load(),
		DecisionsStale:   a.stats.stale.Load(),
		InferenceErrors:  a.stats.inferenceErrors.Load(),
		FramesAbandoned:  a.stats.abandoned.Load(),
		PeakInFlight:     int(a.stats.peakInFlight.Load()),
		Reconnects:       a.stats.reconnects.Load(),
		LinkState:        a.State(),
		TargetRate:       snap.TargetRate,
		EffectiveRate:    snap.EffectiveRate,
		LatencyEWMA:      snap.LatencyEWMA,
		LastCommand:      a.act.lastCommand(),
	}
}

// SummaryTable renders s as a two-column table.
func SummaryTable(s core.Stats) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.RightAlign(1)

	table.AddRow("DURATION", s.Elapsed.Round(time.Millisecond))
	table.AddRow("FRAMES CAPTURED", s.FramesCaptured)
	table.AddRow("FRAMES SENT", s.FramesSent)
	table.AddRow("FRAMES DROPPED", s.FramesDropped)
	table.AddRow("CAPTURE ERRORS", s.CaptureErrors)
	table.AddRow("DECISIONS APPLIED", s.DecisionsApplied)
	table.AddRow("DECISIONS STALE", s.DecisionsStale)
	table.AddRow("INFERENCE ERRORS", s.InferenceErrors)
	table.AddRow("FRAMES ABANDONED", s.FramesAbandoned)
	table.AddRow("PEAK IN FLIGHT", s.PeakInFlight)
	table.AddRow("RECONNECTS", s.Reconnects)
	table.AddRow("LOOP RATE (HZ)", fmt.Sprintf("%.1f / %.1f", s.EffectiveRate, s.TargetRate))
	table.AddRow("LATENCY EWMA", s.LatencyEWMA.Round(100*time.Microsecond))
	table.AddRow("FPS", fmt.Sprintf("%.2f", s.FPS()))
	table.AddRow("LAST COMMAND", s.LastCommand.String())
	return table
}

func (a *Agent) printSummary() {
	s := a.Stats()
	fmt.Fprintf(a.out, "Sent %d frames in %.1f seconds at %.2f fps\n", s.FramesSent, s.Elapsed.Seconds(), s.FPS())
	fmt.Fprintln(a.out, SummaryTable(s))
}
