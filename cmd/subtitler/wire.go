package main

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"subtitler/internal/audio"
	"subtitler/internal/caption"
	"subtitler/internal/config"
	"subtitler/internal/notify"
	"subtitler/internal/pipeline"
	"subtitler/internal/queue"
	"subtitler/internal/speech"
	"subtitler/internal/storage"
)

// dependencies are the process-wide clients shared by the enabled stages.
type dependencies struct {
	store    *storage.S3Store
	notifier *notify.Redis
	amqp     *amqp.Connection
}

func connect(ctx context.Context, cfg *config.Config, services map[config.Service]bool) (*dependencies, error) {
	client, err := storage.NewClient(ctx, storage.Options{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		PathStyle: cfg.S3.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	deps := &dependencies{store: storage.NewS3Store(client)}

	if services[config.ServiceAuthorizer] || services[config.ServiceDeliverer] {
		deps.notifier = notify.NewRedis(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Channel)
		if err := deps.notifier.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis is not reachable yet")
		}
	}

	if services[config.ServiceTranscriber] || services[config.ServiceDeliverer] {
		conn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		deps.amqp = conn
	}
	return deps, nil
}

func (d *dependencies) Close() {
	if d.amqp != nil && !d.amqp.IsClosed() {
		if err := d.amqp.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close the RabbitMQ connection")
		}
	}
	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close the redis client")
		}
		d.notifier = nil
	}
}

func newAuthorizer(cfg *config.Config, deps *dependencies) *pipeline.Authorizer {
	return &pipeline.Authorizer{
		Bucket:    cfg.S3.InputBucket,
		Prefix:    cfg.Upload.Prefix,
		TTL:       cfg.Upload.URLTTL,
		Presigner: deps.store,
		Notifier:  deps.notifier,
	}
}

func newTranscriber(ctx context.Context, cfg *config.Config, deps *dependencies) (*pipeline.Transcriber, error) {
	speechStore, err := storage.NewClient(ctx, storage.Options{
		Region:    cfg.Speech.StoreRegion,
		Endpoint:  cfg.Speech.StoreEndpoint,
		AccessKey: cfg.Speech.StoreAccessKey,
		SecretKey: cfg.Speech.StoreSecretKey,
		PathStyle: true,
	})
	if err != nil {
		return nil, err
	}
	relocator, err := storage.NewRelocator(storage.NewS3Store(speechStore), cfg.Speech.Bucket, cfg.Speech.BucketScheme)
	if err != nil {
		return nil, err
	}
	recognizer, err := speech.NewClient(cfg.Speech.Endpoint, cfg.Speech.APIKey, speech.RecognitionConfig{
		Encoding:                   cfg.Speech.Encoding,
		SampleRateHertz:            cfg.Speech.SampleRateHertz,
		LanguageCode:               cfg.Speech.LanguageCode,
		EnableAutomaticPunctuation: cfg.Speech.Punctuation,
		AudioChannelCount:          cfg.Speech.AudioChannelCount,
	}, cfg.Speech.Timeout)
	if err != nil {
		return nil, err
	}
	publisher, err := queue.NewPublisher(deps.amqp, cfg.AMQP.DeliveryQueue)
	if err != nil {
		return nil, err
	}

	transcriber := &pipeline.Transcriber{
		Store:      deps.store,
		Relocator:  relocator,
		Recognizer: recognizer,
		Forwarder:  queue.NewForwarder(publisher),
		TempDir:    cfg.TransientDir,
	}
	if cfg.Speech.Normalize {
		ffmpeg, err := audio.NewFFmpeg(cfg.Speech.SampleRateHertz, cfg.Speech.AudioChannelCount)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("using ffmpeg to normalize uploads")
		transcriber.Normalizer = ffmpeg
	}
	return transcriber, nil
}

func newDeliverer(cfg *config.Config, deps *dependencies) *pipeline.Deliverer {
	return &pipeline.Deliverer{
		Results:   deps.store,
		Presigner: deps.store,
		Notifier:  deps.notifier,
		Bucket:    cfg.S3.ResultBucket,
		TTL:       cfg.DownloadURLTTL,
		Timing: caption.FixedSpacing{
			Interval: cfg.Caption.LineInterval,
			Duration: cfg.Caption.LineDuration,
		},
	}
}
