package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*S3Options)(nil)

// S3Options configures the object store receiving frames whose inference failed.
type S3Options struct {
	// Endpoint of the S3 service. Empty disables archiving.
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey string `json:"secret-access-key" mapstructure:"secret-access-key"`
	UseSSL          bool   `json:"use-ssl" mapstructure:"use-ssl"`
	BucketName      string `json:"bucket-name" mapstructure:"bucket-name"`
	Region          string `json:"region" mapstructure:"region"`

	// QueueSize bounds the number of frames waiting for upload.
	QueueSize int `json:"queue-size" mapstructure:"queue-size"`
}

func NewS3Options() *S3Options {
	return &S3Options{
		UseSSL:     false,
		BucketName: "rpilot-failed-frames",
		Region:     "us-east-1",
		QueueSize:  64,
	}
}

// Enabled reports whether an endpoint was configured.
func (o *S3Options) Enabled() bool {
	return o != nil && o.Endpoint != ""
}

func (o *S3Options) Validate() []error {
	if !o.Enabled() {
		return nil
	}

	errors := []error{}

	if o.BucketName == "" {
		errors = append(errors, fmt.Errorf("--s3.bucket-name is required when --s3.endpoint is set"))
	}
	if o.QueueSize <= 0 {
		errors = append(errors, fmt.Errorf("--s3.queue-size must be positive"))
	}

	return errors
}

func (o *S3Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Endpoint, "s3.endpoint", o.Endpoint, "S3 service endpoint (e.g. minio.local:9000). Empty disables the failed-frame archive.")
	fs.StringVar(&o.AccessKeyID, "s3.access-key-id", o.AccessKeyID, "S3 access key ID")
	fs.StringVar(&o.SecretAccessKey, "s3.secret-access-key", o.SecretAccessKey, "S3 secret access key")
	fs.BoolVar(&o.UseSSL, "s3.use-ssl", o.UseSSL, "Enable SSL for S3 connection")
	fs.StringVar(&o.BucketName, "s3.bucket-name", o.BucketName, "S3 bucket name for failed frames")
	fs.StringVar(&o.Region, "s3.region", o.Region, "S3 region")
	fs.IntVar(&o.QueueSize, "s3.queue-size", o.QueueSize, "Maximum number of frames waiting for upload; further frames are dropped.")
}
