package cloud

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    Location
		wantErr bool
	}{
		{name: "bucket and path", uri: "s3://mybucket/data/BNU1", want: Location{Bucket: "mybucket", Path: "data/BNU1"}},
		{name: "bucket only", uri: "s3://mybucket", want: Location{Bucket: "mybucket"}},
		{name: "trailing slash", uri: "s3://mybucket/data/", want: Location{Bucket: "mybucket", Path: "data"}},
		{name: "not s3", uri: "http://mybucket/data", wantErr: true},
		{name: "empty bucket", uri: "s3:///data", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "s3://b", Location{Bucket: "b"}.String())
	assert.Equal(t, "s3://b/p/q", Location{Bucket: "b", Path: "p/q"}.String())
}

func TestFetchArgs(t *testing.T) {
	loc := Location{Bucket: "bucket", Path: "data/BNU1"}

	tr := &Transfer{}
	assert.Equal(t,
		[]string{"s3", "cp", "s3://bucket/data/BNU1/sub-01", "/tmp/in/sub-01", "--recursive"},
		tr.FetchArgs(loc, "sub-01", "/tmp/in"))

	pub := &Transfer{NoSign: true, Region: "us-east-1"}
	assert.Equal(t,
		[]string{"s3", "cp", "s3://bucket/data/BNU1", "/tmp/in", "--recursive",
			"--no-sign-request", "--region", "us-east-1"},
		pub.FetchArgs(loc, "", "/tmp/in"))
}

func TestPushArgs(t *testing.T) {
	loc := Location{Bucket: "bucket", Path: "derivatives"}

	tr := &Transfer{Region: "eu-west-2"}
	assert.Equal(t,
		[]string{"s3", "cp", "/tmp/out", "s3://bucket/derivatives", "--recursive",
			"--exclude", "tmp/*", "--acl", "public-read", "--region", "eu-west-2"},
		tr.PushArgs("/tmp/out", loc))
}

func TestPushRefusesUnsigned(t *testing.T) {
	tr := &Transfer{NoSign: true}
	err := tr.Push(context.Background(), "/tmp/out", Location{Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signed")
}

type fakeLister struct {
	buckets []string
	err     error
}

func (f *fakeLister) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &s3.ListBucketsOutput{}
	for _, name := range f.buckets {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func TestEnsureBucket(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{buckets: []string{"alpha", "beta"}}

	require.NoError(t, EnsureBucket(ctx, lister, "beta"))

	err := EnsureBucket(ctx, lister, "gamma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gamma")

	broken := &fakeLister{err: errors.New("no credentials")}
	require.Error(t, EnsureBucket(ctx, broken, "alpha"))
}
