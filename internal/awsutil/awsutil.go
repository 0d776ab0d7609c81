// Package awsutil builds AWS SDK configuration from application config.
package awsutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outpost/internal/config"
)

// LoadConfig loads the default AWS credential chain, applying the optional
// region override.
func LoadConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, eris.Wrap(err, "awsutil: load config")
	}
	return awsCfg, nil
}

// BaseEndpoint returns the endpoint override for service clients, or nil to
// use the SDK default. Used with localstack and DynamoDB Local.
func BaseEndpoint(cfg config.AWSConfig) *string {
	if cfg.Endpoint == "" {
		return nil
	}
	return aws.String(cfg.Endpoint)
}
