// Package guestlog streams published guest logs: the service reports where
// log segments live in the object store, and this package reassembles them
// into a tail or a saved file.
package guestlog

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/edvin/dbaas/internal/transport"
)

// Segment is one published log object.
type Segment struct {
	Key          string
	LastModified time.Time
}

// Store is the object-store surface the streamer needs. Tests stub it
// in-process; production uses the S3 implementation.
type Store interface {
	// ListSegments returns the objects under prefix, newest first.
	ListSegments(ctx context.Context, container, prefix string) ([]Segment, error)
	// LineCount reads the per-object line-count metadata.
	LineCount(ctx context.Context, container, key string) (int, error)
	// Fetch opens one object for reading.
	Fetch(ctx context.Context, container, key string) (io.ReadCloser, error)
}

// lineCountKey is the object metadata key the service stamps each published
// segment with.
const lineCountKey = "lines"

// S3Store reads published segments over the S3 API.
type S3Store struct {
	client *s3.Client
}

// S3Options configures the object-store endpoint the service publishes to.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Store builds a path-style S3 client for the publication endpoint.
// A fresh store is constructed per streaming call; it is not pooled.
func NewS3Store(opts S3Options) *S3Store {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	return &S3Store{client: s3.New(s3.Options{
		BaseEndpoint: aws.String(opts.Endpoint),
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		UsePathStyle: true,
	})}
}

func (s *S3Store) ListSegments(ctx context.Context, container, prefix string) ([]Segment, error) {
	var segments []Segment
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(container),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storeError("list segments", err)
		}
		for _, obj := range page.Contents {
			seg := Segment{Key: aws.ToString(obj.Key)}
			if obj.LastModified != nil {
				seg.LastModified = *obj.LastModified
			}
			segments = append(segments, seg)
		}
	}
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].LastModified.After(segments[j].LastModified)
	})
	return segments, nil
}

func (s *S3Store) LineCount(ctx context.Context, container, key string) (int, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, storeError("head segment "+key, err)
	}
	raw, ok := head.Metadata[lineCountKey]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, transport.NewError(transport.KindResponseFormatError,
			"segment %s carries a non-numeric line count %q", key, raw)
	}
	return n, nil
}

func (s *S3Store) Fetch(ctx context.Context, container, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, storeError("fetch segment "+key, err)
	}
	return out.Body, nil
}

// storeError maps missing buckets and keys onto GuestLogNotFound; everything
// else is a connection failure.
func storeError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NoSuchBucket") ||
		strings.Contains(msg, "NotFound") || strings.Contains(msg, "404") {
		return transport.NewError(transport.KindGuestLogNotFound, "%s: %v", op, err)
	}
	return transport.NewError(transport.KindConnectionError, "%s: %v", op, err)
}
