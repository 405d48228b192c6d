// Package gallery lists the public images in an object-storage bucket for
// the gallery artifact.
package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxPageSize caps a single list call.
const MaxPageSize = 1000

// ListOptions selects one page of keys.
type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

// Page is one page of object keys.
type Page struct {
	Keys      []string
	Cursor    string
	Truncated bool
}

// Bucket lists object keys one page at a time.
type Bucket interface {
	List(ctx context.Context, opts ListOptions) (Page, error)
}

// S3Config describes an S3-compatible bucket such as Cloudflare R2.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Bucket is a Bucket backed by the S3 ListObjectsV2 API.
type S3Bucket struct {
	client *s3.Client
	bucket string
}

// NewS3Bucket returns a bucket client. Path-style addressing is used so
// R2 and MinIO endpoints work unchanged.
func NewS3Bucket(cfg S3Config) (*S3Bucket, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gallery: bucket name is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("gallery: access key id and secret are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})
	return &S3Bucket{client: client, bucket: cfg.Bucket}, nil
}

// List returns one page of keys.
func (b *S3Bucket) List(ctx context.Context, opts ListOptions) (Page, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		MaxKeys: aws.Int32(int32(clampLimit(opts.Limit))),
	}
	if opts.Prefix != "" {
		in.Prefix = aws.String(opts.Prefix)
	}
	if opts.Cursor != "" {
		in.ContinuationToken = aws.String(opts.Cursor)
	}

	out, err := b.client.ListObjectsV2(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w", b.bucket, err)
	}

	page := Page{
		Keys:      make([]string, 0, len(out.Contents)),
		Cursor:    aws.ToString(out.NextContinuationToken),
		Truncated: aws.ToBool(out.IsTruncated),
	}
	for _, obj := range out.Contents {
		page.Keys = append(page.Keys, aws.ToString(obj.Key))
	}
	return page, nil
}

func clampLimit(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
