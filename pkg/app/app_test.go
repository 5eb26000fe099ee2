package app

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	cliflag "k8s.io/component-base/cli/flag"
)

type testLinkOptions struct {
	Server string        `mapstructure:"server"`
	Window int           `mapstructure:"window"`
	Stale  time.Duration `mapstructure:"stale"`
}

type testOptions struct {
	Link *testLinkOptions `mapstructure:"link"`

	completed bool
	invalid   bool
}

func newTestOptions() *testOptions {
	return &testOptions{Link: &testLinkOptions{Server: "127.0.0.1:5000", Window: 2, Stale: time.Second}}
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("link")
	o.addLinkFlags(fs)
	return fss
}

func (o *testOptions) addLinkFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Link.Server, "link.server", o.Link.Server, "")
	fs.IntVar(&o.Link.Window, "link.window", o.Link.Window, "")
	fs.DurationVar(&o.Link.Stale, "link.stale", o.Link.Stale, "")
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid")
	}
	return nil
}

func TestAppLoadsConfigFileFlagsAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "edge.yaml")
	cfg := "link:\n  server: pilot-pc:5000\n  window: 4\n  stale: 300ms\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RPILOTTEST_LINK_STALE", "250ms")

	opts := newTestOptions()
	ran := false
	a := NewApp("test", "test app",
		WithOptions(opts),
		WithEnvPrefix("RPILOTTEST"),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"--config", cfgPath, "--link.window=8"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !ran || !opts.completed {
		t.Fatalf("run=%v completed=%v", ran, opts.completed)
	}
	if opts.Link.Server != "pilot-pc:5000" {
		t.Errorf("Server = %q, want value from config file", opts.Link.Server)
	}
	if opts.Link.Window != 8 {
		t.Errorf("Window = %d, want flag value 8", opts.Link.Window)
	}
	if opts.Link.Stale != 250*time.Millisecond {
		t.Errorf("Stale = %v, want env value 250ms", opts.Link.Stale)
	}
}

func TestAppRejectsInvalidOptions(t *testing.T) {
	opts := newTestOptions()
	opts.invalid = true
	ran := false

	a := NewApp("test", "test app", WithOptions(opts), WithRunFunc(func() error {
		ran = true
		return nil
	}))
	cmd := a.Command()
	cmd.SetArgs([]string{})
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected a validation error")
	}
	if ran {
		t.Error("run func must not be called with invalid options")
	}
}

func TestAppRejectsPositionalArgs(t *testing.T) {
	a := NewApp("test", "test app", WithOptions(newTestOptions()), WithDefaultValidArgs())
	cmd := a.Command()
	cmd.SetArgs([]string{"extra"})
	cmd.SetErr(io.Discard)
	cmd.SetOut(io.Discard)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for a positional argument")
	}
}
