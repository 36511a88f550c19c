// Package storage implements the pipeline's object store collaborators on
// top of S3 or any S3-compatible endpoint.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"subtitler/internal/pipeline"
)

// Options describes how to reach one S3-compatible endpoint.
type Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// NewClient builds an S3 client. Static credentials are used when both keys
// are set, otherwise the default credential chain applies.
func NewClient(ctx context.Context, opts Options) (*s3.Client, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Endpoint != "" {
		loaders = append(loaders, config.WithBaseEndpoint(opts.Endpoint))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     opts.AccessKey,
				SecretAccessKey: opts.SecretKey,
			},
		}))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			// Non-AWS endpoints reject the SDK's default trailing checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	}), nil
}

// S3Store is an AudioStore, ResultStore and Presigner.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
}

func NewS3Store(client *s3.Client) *S3Store {
	return &S3Store{client: client, presigner: s3.NewPresignClient(client)}
}

func (s *S3Store) Fetch(ctx context.Context, bucket, key string, w io.Writer) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Owner returns the owner contact tag bound at upload time, or "" if the
// object carries none.
func (s *S3Store) Owner(ctx context.Context, bucket, key string) (string, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("get tagging s3://%s/%s: %w", bucket, key, err)
	}
	for _, tag := range out.TagSet {
		if aws.ToString(tag.Key) == pipeline.OwnerTag {
			return aws.ToString(tag.Value), nil
		}
	}
	return "", nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// PresignUpload signs a PUT for exactly bucket/key. Tags are bound through
// the signed x-amz-tagging header, so the uploader cannot alter them.
func (s *S3Store) PresignUpload(ctx context.Context, bucket, key string, tags map[string]string, ttl time.Duration) (*pipeline.Capability, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if len(tags) > 0 {
		values := url.Values{}
		for k, v := range tags {
			values.Set(k, v)
		}
		input.Tagging = aws.String(values.Encode())
	}

	req, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put s3://%s/%s: %w", bucket, key, err)
	}
	headers := req.SignedHeader.Clone()
	headers.Del("Host")
	return &pipeline.Capability{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   headers,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (s *S3Store) PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get s3://%s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// Relocator writes into a fixed bucket and reports objects as
// scheme://bucket/key, the form the speech service reads.
type Relocator struct {
	store  *S3Store
	bucket string
	scheme string
}

// NewRelocator targets bucket on the store's endpoint. An empty scheme
// defaults to "gs".
func NewRelocator(store *S3Store, bucket, scheme string) (*Relocator, error) {
	if bucket == "" {
		return nil, errors.New("relocation bucket is required")
	}
	if scheme == "" {
		scheme = "gs"
	}
	return &Relocator{store: store, bucket: bucket, scheme: scheme}, nil
}

func (r *Relocator) Relocate(ctx context.Context, key string, body io.Reader) (string, error) {
	_, err := r.store.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("put %s://%s/%s: %w", r.scheme, r.bucket, key, err)
	}
	return fmt.Sprintf("%s://%s/%s", r.scheme, r.bucket, key), nil
}
