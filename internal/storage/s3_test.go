package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineStore() *S3Store {
	client := s3.New(s3.Options{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	})
	return NewS3Store(client)
}

func TestPresignUpload(t *testing.T) {
	store := offlineStore()

	capability, err := store.PresignUpload(context.Background(), "audio-in", "uploads/talk.flac",
		map[string]string{"email": "owner@example.com"}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "PUT", capability.Method)
	u, err := url.Parse(capability.URL)
	require.NoError(t, err)
	assert.Contains(t, u.Host+u.Path, "audio-in")
	assert.Contains(t, u.Path, "uploads/talk.flac")
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Empty(t, capability.Headers.Get("Host"))
	assert.Equal(t, "email=owner%40example.com", capability.Headers.Get("X-Amz-Tagging"))
	assert.Contains(t, strings.Split(u.Query().Get("X-Amz-SignedHeaders"), ";"), "x-amz-tagging")
	assert.WithinDuration(t, time.Now().Add(time.Hour), capability.ExpiresAt, time.Minute)
}

func TestPresignDownload(t *testing.T) {
	store := offlineStore()

	signed, err := store.PresignDownload(context.Background(), "captions", "uploads/talk.flac.srt", 30*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Contains(t, u.Path, "uploads/talk.flac.srt")
	assert.Equal(t, "1800", u.Query().Get("X-Amz-Expires"))
}

func TestNewRelocator(t *testing.T) {
	_, err := NewRelocator(offlineStore(), "", "")
	assert.Error(t, err)

	r, err := NewRelocator(offlineStore(), "speech-audio", "")
	require.NoError(t, err)
	assert.Equal(t, "gs", r.scheme)
}

func TestNewClientUsesStaticCredentials(t *testing.T) {
	client, err := NewClient(context.Background(), Options{
		Region:    "eu-west-1",
		Endpoint:  "http://minio:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		PathStyle: true,
	})
	require.NoError(t, err)

	opts := client.Options()
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	creds, err := opts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)
}
