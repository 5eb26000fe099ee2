package topic

import (
	"fmt"
)

// Topic segments published by the edge agent.
// Changing these values breaks every dashboard subscribed to them.
const (
	// SuffixTelemetry carries periodic loop statistics.
	// Structure: {root}/telemetry/{vehicleID}
	SuffixTelemetry = "telemetry"

	// SuffixAlert carries fatal conditions such as an exhausted reconnect budget.
	// Structure: {root}/alert/{vehicleID}
	SuffixAlert = "alert"

	// SuffixOnline carries the retained online/offline status, also used as the will topic.
	// Structure: {root}/online/{vehicleID}
	SuffixOnline = "online"
)

// Wildcard is the single-level MQTT wildcard.
const Wildcard = "+"

// Builder encapsulates the logic for constructing MQTT topic strings.
type Builder struct {
	// root is the base namespace for all topics (e.g., "rpilot/v1").
	root string
}

// NewBuilder creates a new Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Telemetry returns the topic a vehicle reports loop statistics to.
func (b *Builder) Telemetry(vehicleID string) string {
	return b.build(SuffixTelemetry, vehicleID)
}

// TelemetryWildcard returns the filter matching the telemetry of all vehicles.
func (b *Builder) TelemetryWildcard() string {
	return b.build(SuffixTelemetry, Wildcard)
}

// Alert returns the topic a vehicle reports fatal conditions to.
func (b *Builder) Alert(vehicleID string) string {
	return b.build(SuffixAlert, vehicleID)
}

// Online returns the retained status topic of a vehicle.
func (b *Builder) Online(vehicleID string) string {
	return b.build(SuffixOnline, vehicleID)
}

// build constructs {root}/{suffix}/{identifier}.
func (b *Builder) build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}
