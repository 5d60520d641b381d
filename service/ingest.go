package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"zoom-ingest/config"
	"zoom-ingest/constant"
	"zoom-ingest/dto"
	"zoom-ingest/entities"
	"zoom-ingest/pkg/scratch"
	"zoom-ingest/repository"
)

// IngestStep is the per-job state of the transfer worker.
type IngestStep string

const (
	StepReceived       IngestStep = "RECEIVED"
	StepCheckingStatus IngestStep = "CHECKING_STATUS"
	StepDownloading    IngestStep = "DOWNLOADING"
	StepUploading      IngestStep = "UPLOADING"
	StepDone           IngestStep = "DONE"
	StepFailed         IngestStep = "FAILED"
)

type IngestService interface {
	Process(ctx context.Context, record *dto.JobRecord) error
}

type ingestService struct {
	repo         repository.RecordingRepository
	store        scratch.Store
	downloader   Downloader
	opencast     Opencast
	flavor       string
	seriesPrefix string
	timeout      time.Duration
}

func NewIngestService(
	repo repository.RecordingRepository,
	store scratch.Store,
	downloader Downloader,
	opencast Opencast,
	cfg *config.Config,
) IngestService {
	return &ingestService{
		repo:         repo,
		store:        store,
		downloader:   downloader,
		opencast:     opencast,
		flavor:       cfg.Opencast.Flavor,
		seriesPrefix: cfg.Opencast.SeriesPrefix,
		timeout:      cfg.Worker.TransferTimeout,
	}
}

// Process runs one job through the transfer state machine:
//
//	RECEIVED -> CHECKING_STATUS -> DOWNLOADING -> UPLOADING -> DONE
//	                  |                 |             |
//	                  +--(finished)---> DONE          |
//	                  +-----------> FAILED <----------+
//
// A nil return means the delivery can be acknowledged: either the transfer
// finished and was recorded, or the recording was already FINISHED and this
// was a duplicate delivery. Any error return leaves the status row at
// IN_PROGRESS so a redelivery retries the whole transfer.
func (s *ingestService) Process(ctx context.Context, record *dto.JobRecord) error {
	log := zerolog.Ctx(ctx).With().Str("uuid", record.UUID).Logger()
	ctx = log.WithContext(ctx)

	step := StepReceived
	var (
		file        *dto.MediaFile
		scratchName string
		procErr     error
	)

	for {
		switch step {
		case StepReceived:
			log.Info().Str("topic", record.Topic).Msg("processing job")
			step = StepCheckingStatus

		case StepCheckingStatus:
			claimed, err := s.claim(ctx, record)
			if err != nil {
				// Without the status store there is no idempotency guard, so
				// no transfer. The unacknowledged message comes back later.
				log.Error().Err(err).Msg("status store unavailable")
				return err
			}
			if !claimed {
				log.Info().Msg("recording already finished, skipping duplicate delivery")
				step = StepDone
				continue
			}
			step = StepDownloading

		case StepDownloading:
			if len(record.RecordingFiles) == 0 {
				procErr = errors.Join(ErrNonRetryable, ErrNoAcceptedFiles)
				step = StepFailed
				continue
			}
			file = &record.RecordingFiles[0]
			scratchName = file.RecordingID + ".mp4"
			if err := s.download(ctx, file, record.Token, scratchName); err != nil {
				log.Error().Err(err).Msg("failed to download recording file")
				procErr = err
				step = StepFailed
				continue
			}
			step = StepUploading

		case StepUploading:
			if err := s.upload(ctx, record, scratchName); err != nil {
				log.Error().Err(err).Msg("failed to upload recording")
				procErr = err
				step = StepFailed
				continue
			}
			if err := s.store.Remove(ctx, scratchName); err != nil {
				log.Error().Err(err).Str("object", scratchName).Msg("failed to remove scratch object")
			}
			if err := s.repo.MarkFinished(ctx, record.UUID); err != nil {
				// The upload landed but FINISHED was not recorded. Redelivery
				// redoes the transfer; a duplicate upload is the accepted
				// failure mode, losing the recording is not.
				log.Error().Err(err).Msg("failed to mark recording finished")
				return err
			}
			log.Info().Msg("job completed")
			step = StepDone

		case StepDone:
			return nil

		case StepFailed:
			// The status row stays IN_PROGRESS as evidence of non-completion.
			// Scratch space is reclaimed, redelivery starts the download over.
			if scratchName != "" {
				if err := s.store.Remove(ctx, scratchName); err != nil {
					log.Error().Err(err).Str("object", scratchName).Msg("failed to remove scratch object")
				}
			}
			return procErr
		}
	}
}

func (s *ingestService) claim(ctx context.Context, record *dto.JobRecord) (bool, error) {
	snapshot := *record
	// The short-lived download credential never reaches the ledger.
	snapshot.Token = ""
	payload, err := json.Marshal(&snapshot)
	if err != nil {
		return false, errors.Join(ErrNonRetryable, err)
	}

	return s.repo.Claim(ctx, &entities.Recording{
		UID:     record.UUID,
		State:   constant.RecordingStateInProgress,
		Topic:   record.Topic,
		Creator: record.Creator,
		Payload: payload,
	})
}

func (s *ingestService) download(ctx context.Context, file *dto.MediaFile, token, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.downloader.Fetch(ctx, file.DownloadURL, token)
	if err != nil {
		return err
	}
	defer body.Close()

	n, err := s.store.Save(ctx, name, body)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int64("bytes", n).Str("object", name).Msg("downloaded recording file")
	return nil
}

func (s *ingestService) upload(ctx context.Context, record *dto.JobRecord, name string) error {
	at := strings.Index(record.Creator, "@")
	if at <= 0 {
		return errors.Join(ErrNonRetryable,
			fmt.Errorf("creator %q has no mailbox part, cannot derive a series", record.Creator))
	}
	seriesTitle := s.seriesPrefix + record.Creator[:at]

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	seriesID, err := s.opencast.EnsureSeries(ctx, record.Creator, seriesTitle)
	if err != nil {
		return err
	}

	body, err := s.store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer body.Close()

	return s.opencast.Ingest(ctx, &MediaPackage{
		Title:    record.Topic,
		Creator:  record.Creator,
		SeriesID: seriesID,
		Flavor:   s.flavor,
		Filename: name,
		Body:     body,
	})
}
