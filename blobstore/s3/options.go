package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadConfig tunes the multipart uploader.
type UploadConfig struct {
	// PartSize is the multipart part size. Default: 8MB.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel. Default: 5.
	Concurrency int
	// LeavePartsOnError keeps uploaded parts when an upload fails.
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:    8 * 1024 * 1024,
		Concurrency: 5,
	}
}

type options struct {
	prefix    string
	region    string
	endpoint  string
	pathStyle bool
	upload    UploadConfig
}

// Option configures a Store.
type Option func(*options)

// WithPrefix prepends prefix to every key.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRegion overrides the region from the shared AWS configuration.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points the client at a custom S3-compatible endpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithPathStyle enables path-style addressing (bucket in the URL path).
func WithPathStyle(enabled bool) Option {
	return func(o *options) { o.pathStyle = enabled }
}

// WithUploadConfig sets the multipart upload parameters.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *options) { o.upload = cfg }
}

func applyOptions(optFns []Option) options {
	o := options{upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// New loads the default AWS configuration and returns a Store for bucket.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)

	var cfgOpts []func(*config.LoadOptions) error
	if o.region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(o.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
		so.UsePathStyle = o.pathStyle
	})
	return newStore(client, bucket, o), nil
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}
