package cloud

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Location is a parsed s3:// URI.
type Location struct {
	Bucket string
	Path   string // Key prefix without leading or trailing slash. May be empty.
}

// ParseS3URI splits "s3://bucket/prefix" into its parts.
func ParseS3URI(uri string) (Location, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return Location{}, fmt.Errorf("%q is not an s3:// URI", uri)
	}
	bucket, path, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%q has no bucket name", uri)
	}
	return Location{Bucket: bucket, Path: strings.Trim(path, "/")}, nil
}

func (l Location) String() string {
	if l.Path == "" {
		return "s3://" + l.Bucket
	}
	return "s3://" + l.Bucket + "/" + l.Path
}

// BucketLister is the slice of the S3 API needed for bucket validation.
// *s3.Client satisfies it.
type BucketLister interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

var _ BucketLister = (*s3.Client)(nil)

// NewBucketLister builds a real S3 client from the default credential
// chain.
func NewBucketLister(ctx context.Context, region string) (BucketLister, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// EnsureBucket verifies the bucket is visible to the caller's
// credentials. Callers using unsigned requests against public buckets
// skip this check.
func EnsureBucket(ctx context.Context, api BucketLister, bucket string) error {
	out, err := api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}
	for _, b := range out.Buckets {
		if b.Name != nil && *b.Name == bucket {
			return nil
		}
	}
	return fmt.Errorf("bucket %q not found among accessible buckets", bucket)
}
