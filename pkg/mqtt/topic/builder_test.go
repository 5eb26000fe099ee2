package topic

import "testing"

func TestBuilder(t *testing.T) {
	b := NewBuilder("rpilot/v1")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"telemetry", b.Telemetry("car-1"), "rpilot/v1/telemetry/car-1"},
		{"telemetry wildcard", b.TelemetryWildcard(), "rpilot/v1/telemetry/+"},
		{"alert", b.Alert("car-1"), "rpilot/v1/alert/car-1"},
		{"online", b.Online("car-1"), "rpilot/v1/online/car-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
