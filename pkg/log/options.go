// Copyright 2025 The Remotepilot Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// Options configures the process-wide logger.
type Options struct {
	// Name is prepended to the logger name of every entry.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Level is one of debug, info, warn, error. It can be changed at run time
	// with SetLevel.
	Level string `json:"level,omitempty" mapstructure:"level"`

	// Format is console or json. The car usually runs json to journald.
	Format string `json:"format,omitempty" mapstructure:"format"`

	EnableColor   bool `json:"enable-color,omitempty" mapstructure:"enable-color"`
	DisableCaller bool `json:"disable-caller,omitempty" mapstructure:"disable-caller"`

	// OutputPaths are zap sink URLs or file paths.
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`

	// CallerSkip accounts for the package-level helpers wrapping the logger.
	CallerSkip int `json:"-" mapstructure:"-"`

	// Fields are attached to every entry, e.g. the role and the vehicle ID.
	Fields []any `json:"-" mapstructure:"-"`
}

// NewOptions returns console logging at info level.
func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
		CallerSkip:  2,
		OutputPaths: []string{"stdout"},
	}
}

// WithFields returns a copy of o with kv appended to its fields.
func (o *Options) WithFields(kv ...any) *Options {
	out := *o
	out.Fields = append(slices.Clone(o.Fields), kv...)
	return &out
}

// Validate checks the options.
func (o *Options) Validate() []error {
	var errs []error

	if !slices.Contains([]string{"console", "json"}, o.Format) {
		errs = append(errs, fmt.Errorf("--log.format must be 'console' or 'json', got %q", o.Format))
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(o.Level)); err != nil {
		errs = append(errs, fmt.Errorf("--log.level: %w", err))
	}

	if slices.Contains(o.OutputPaths, "") {
		errs = append(errs, fmt.Errorf("--log.output-paths must not contain an empty path"))
	}

	return errs
}

// AddFlags binds the log.* flags.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "log.name", o.Name, "Name prepended to every log entry's logger.")
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log level: debug, info, warn or error. Reloaded from the config file by the edge agent.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log format: console or json.")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Colorize levels in the console format.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the caller's file and line.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log sinks, e.g. stdout or /var/log/rpilot.log.")
}
