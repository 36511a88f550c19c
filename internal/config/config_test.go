package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, time.Hour, cfg.Upload.URLTTL)
	assert.Equal(t, time.Hour, cfg.DownloadURLTTL)
	assert.Equal(t, "uploads/", cfg.Upload.Prefix)
	assert.Equal(t, 3*time.Second, cfg.Caption.LineInterval)
	assert.Equal(t, 2*time.Second, cfg.Caption.LineDuration)
	assert.Equal(t, "FLAC", cfg.Speech.Encoding)
	assert.Equal(t, 48000, cfg.Speech.SampleRateHertz)
	assert.Equal(t, "en-US", cfg.Speech.LanguageCode)
	assert.True(t, cfg.Speech.Punctuation)
	assert.Equal(t, "uploads", cfg.AMQP.UploadQueue)
	assert.Equal(t, "deliveries", cfg.AMQP.DeliveryQueue)
	assert.Equal(t, "subtitles", cfg.Redis.Channel)
}

func TestParseFromEnvironment(t *testing.T) {
	t.Setenv("S3_INPUT_BUCKET", "audio-in")
	t.Setenv("S3_PATH_STYLE", "true")
	t.Setenv("CAPTION_LINE_INTERVAL", "4s")
	t.Setenv("SPEECH_LANGUAGE_CODE", "de-DE")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "audio-in", cfg.S3.InputBucket)
	assert.True(t, cfg.S3.PathStyle)
	assert.Equal(t, 4*time.Second, cfg.Caption.LineInterval)
	assert.Equal(t, "de-DE", cfg.Speech.LanguageCode)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestEnabledServices(t *testing.T) {
	tests := []struct {
		in      string
		want    map[Service]bool
		wantErr bool
	}{
		{in: "authorizer", want: map[Service]bool{ServiceAuthorizer: true}},
		{in: " transcriber , deliverer ,", want: map[Service]bool{ServiceTranscriber: true, ServiceDeliverer: true}},
		{in: "", wantErr: true},
		{in: "authorizer,http", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := Config{Services: tt.in}
			got, err := cfg.EnabledServices()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	var cfg Config
	require.NoError(t, env.Parse(&cfg))

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_INPUT_BUCKET")
	assert.Contains(t, err.Error(), "SPEECH_API_KEY")
	assert.Contains(t, err.Error(), "SPEECH_BUCKET")

	cfg.Services = "deliverer"
	assert.NoError(t, cfg.Validate())

	cfg.Services = "authorizer,transcriber"
	cfg.S3.InputBucket = "audio-in"
	cfg.Speech.APIKey = "key"
	cfg.Speech.Bucket = "speech-audio"
	assert.NoError(t, cfg.Validate())
}
