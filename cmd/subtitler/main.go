package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"subtitler/internal/config"
	"subtitler/internal/httpapi"
	"subtitler/internal/logging"
	"subtitler/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load the config")
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		log.Warn().Err(err).Str("level", cfg.Log.Level).Msg("unknown log level, using info")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	services, err := cfg.EnabledServices()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid services")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := connect(ctx, &cfg, services)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer deps.Close()

	workers, err := build(ctx, &cfg, deps, services)
	if err != nil {
		log.Error().Err(err).Msg("failed to set up the services")
		deps.Close()
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, work := range workers {
		work := work
		g.Go(func() error {
			return work(gctx)
		})
	}

	if deps.amqp != nil {
		closed := deps.amqp.NotifyClose(make(chan *amqp.Error, 1))
		g.Go(func() error {
			select {
			case err := <-closed:
				if err != nil {
					return err
				}
				return errors.New("connection to RabbitMQ closed")
			case <-gctx.Done():
				return nil
			}
		})
	}

	log.Info().Str("services", cfg.Services).Msg("started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("stopped with error")
		deps.Close()
		os.Exit(1)
	}
	log.Info().Msg("stopped")
}

// build prepares every enabled service. Nothing is started until all of them
// are ready.
func build(ctx context.Context, cfg *config.Config, deps *dependencies, services map[config.Service]bool) ([]func(context.Context) error, error) {
	var workers []func(context.Context) error

	if services[config.ServiceAuthorizer] {
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewHandler(newAuthorizer(cfg, deps), cfg.HTTP.AllowOrigin).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		workers = append(workers, func(ctx context.Context) error {
			return httpapi.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout)
		})
	}

	if services[config.ServiceTranscriber] {
		transcriber, err := newTranscriber(ctx, cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to set up the transcriber: %w", err)
		}
		consumer, err := queue.NewConsumer(deps.amqp, cfg.AMQP.UploadQueue, cfg.AMQP.Prefetch, cfg.InvocationTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to set up the upload consumer: %w", err)
		}
		workers = append(workers, func(ctx context.Context) error {
			return consumer.Run(ctx, transcriber.HandleEvent)
		})
	}

	if services[config.ServiceDeliverer] {
		consumer, err := queue.NewConsumer(deps.amqp, cfg.AMQP.DeliveryQueue, cfg.AMQP.Prefetch, cfg.InvocationTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to set up the delivery consumer: %w", err)
		}
		deliverer := newDeliverer(cfg, deps)
		workers = append(workers, func(ctx context.Context) error {
			return consumer.Run(ctx, deliverer.HandleMessage)
		})
	}

	return workers, nil
}
