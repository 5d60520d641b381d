package handler

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"zoom-ingest/dto"
	"zoom-ingest/service"
)

type ServiceDependencies struct {
	IngestService service.IngestService
}

func JobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var record dto.JobRecord
	if err := json.Unmarshal(msg.Body, &record); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("message_id", msg.MessageId).Msg("failed to unmarshal job record")
		// A body that never decodes will never decode on redelivery either.
		return errors.Join(service.ErrNonRetryable, err)
	}

	return deps.IngestService.Process(ctx, &record)
}
