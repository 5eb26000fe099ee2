package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/remotepilot/internal/inference"
	"github.com/autopeer-io/remotepilot/pkg/app"
	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/options"
)

type InferenceOptions struct {
	ServeOptions     *options.ServeOptions     `json:"serve" mapstructure:"serve"`
	PredictorOptions *options.PredictorOptions `json:"predictor" mapstructure:"predictor"`
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	S3Options        *options.S3Options        `json:"s3" mapstructure:"s3"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*InferenceOptions)(nil)
	_ app.LogOptionsProvider  = (*InferenceOptions)(nil)
)

func NewInferenceOptions() *InferenceOptions {
	o := &InferenceOptions{
		ServeOptions:     options.NewServeOptions(),
		PredictorOptions: options.NewPredictorOptions(),
		HttpOptions:      options.NewHttpOptions(),
		S3Options:        options.NewS3Options(),
		Log:              log.NewOptions(),
	}

	return o
}

func (o *InferenceOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.ServeOptions.AddFlags(fss.FlagSet("serve"))
	o.PredictorOptions.AddFlags(fss.FlagSet("predictor"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *InferenceOptions) Complete() error {
	return nil
}

func (o *InferenceOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.ServeOptions.Validate()...)
	errs = append(errs, o.PredictorOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *InferenceOptions) LogOptions() *log.Options {
	return o.Log.WithFields("role", "inference")
}

func (o *InferenceOptions) Config() (*inference.Config, error) {
	return &inference.Config{
		ServeOptions:     o.ServeOptions,
		PredictorOptions: o.PredictorOptions,
		HttpOptions:      o.HttpOptions,
		S3Options:        o.S3Options,
	}, nil
}
