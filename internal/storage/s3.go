package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the part of *s3.Client the store uses; tests substitute a fake.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores images in a bucket. Objects are expected to be publicly readable
// (bucket policy), and URLs are built from publicURL, which defaults to the
// virtual-hosted bucket endpoint.
type S3 struct {
	client    s3API
	bucket    string
	publicURL string
}

var _ Store = (*S3)(nil)

// NewS3 loads AWS credentials the standard way (environment, shared config,
// instance role) and returns a store for bucket.
func NewS3(ctx context.Context, bucket, region, publicURL string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: loading AWS config: %w", err)
	}
	return newS3(s3.NewFromConfig(cfg), bucket, publicURL), nil
}

func newS3(client s3API, bucket, publicURL string) *S3 {
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.amazonaws.com/", bucket)
	}
	if !strings.HasSuffix(publicURL, "/") {
		publicURL += "/"
	}
	return &S3{client: client, bucket: bucket, publicURL: publicURL}
}

func (s *S3) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: uploading %s: %w", key, err)
	}
	return s.publicURL + key, nil
}

func (s *S3) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.publicURL)
	if !ok || key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}
