package server

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"zoom-ingest/config"
	jobHandler "zoom-ingest/handler"
	"zoom-ingest/pkg/rabbitmq"
	"zoom-ingest/pkg/scratch"
	"zoom-ingest/repository"
	"zoom-ingest/service"
)

// RunWorker runs the transfer worker, either as a persistent subscription or,
// with drain set, as a bounded pass over the currently queued jobs.
func RunWorker(cfg *config.Config, drain bool) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("NewRabbitMQConn")
	}

	repo, err := repository.NewRepo(cfg.DB)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("NewRepo")
	}

	store, err := newScratchStore(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("newScratchStore")
	}

	ingestService := service.NewIngestService(repo, store, service.NewDownloader(), service.NewOpencast(&cfg.Opencast), cfg)
	serviceDeps := jobHandler.ServiceDependencies{
		IngestService: ingestService,
	}

	consumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.JobHandler)

	if drain {
		processed, err := consumer.Drain(ctx, serviceDeps)
		if err != nil && !errors.Is(err, context.Canceled) {
			zerolog.Ctx(ctx).Error().Err(err).Int("processed", processed).Msg("drain aborted")
			return
		}
		zerolog.Ctx(ctx).Info().Int("processed", processed).Msg("drain finished")
		return
	}

	if err := consumer.Consume(ctx, serviceDeps); err != nil && !errors.Is(err, context.Canceled) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("consumer error")
	}
	zerolog.Ctx(ctx).Info().Msg("worker shutdown")
}

func newScratchStore(ctx context.Context, cfg *config.Config) (scratch.Store, error) {
	if cfg.Scratch.Backend == "s3" {
		return scratch.NewMinio(ctx, cfg.Storage, cfg.Scratch.Bucket, cfg.Scratch.Prefix)
	}
	return scratch.NewDisk(cfg.Scratch.Dir), nil
}
