package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

// S3Config configures the S3 blob store.
type S3Config struct {
	// Region is the default region; a region carried by the locator overrides it.
	Region string
	// Endpoint is an optional S3-compatible endpoint; path-style addressing is used when set.
	Endpoint string
}

// S3Store reads objects from Amazon S3 or an S3-compatible service.
type S3Store struct {
	client *s3.Client
}

// NewS3Store creates an S3Store using the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client}, nil
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, loc *Locator) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}, func(o *s3.Options) {
		if loc.Region != "" {
			o.Region = loc.Region
		}
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var noSuchBucket *types.NoSuchBucket
		if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
			return nil, fmt.Errorf("s3://%s/%s: %w", loc.Bucket, loc.Key, ErrObjectNotFound)
		}
		return nil, errors.Wrapf(err, "failed to get s3://%s/%s", loc.Bucket, loc.Key)
	}
	return out.Body, nil
}
