package options

import (
	"testing"
)

func TestAgentOptionsDefaults(t *testing.T) {
	o := NewAgentOptions()
	if err := o.Complete(); err != nil {
		t.Fatal(err)
	}
	if o.VehicleID == "" {
		t.Error("Complete() did not derive a vehicle ID")
	}
	if err := o.Validate(); err != nil {
		t.Errorf("default options are invalid: %v", err)
	}

	cfg, err := o.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.VehicleID != o.VehicleID || cfg.LinkOptions != o.LinkOptions || cfg.LoopOptions != o.LoopOptions {
		t.Error("Config() does not carry the options")
	}
}

func TestAgentOptionsFlags(t *testing.T) {
	o := NewAgentOptions()
	fs := o.Flags()

	for _, section := range []string{"agent", "link", "loop", "reconnect", "hal", "mqtt", "http", "log"} {
		if !fs.FlagSet(section).HasFlags() {
			t.Errorf("flag section %q is empty", section)
		}
	}

	if err := fs.FlagSet("loop").Parse([]string{"--loop.target-rate=12", "--loop.fallback=hold"}); err != nil {
		t.Fatal(err)
	}
	if o.LoopOptions.TargetRate != 12 || o.LoopOptions.Fallback != "hold" {
		t.Errorf("loop flags not bound: %+v", o.LoopOptions)
	}

	o.LinkOptions.Window = 0
	if err := o.Validate(); err == nil {
		t.Error("Validate() accepted a zero window")
	}
}
