package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"zoom-ingest/config"
	"zoom-ingest/constant"
	"zoom-ingest/dto"
)

type Publisher interface {
	Publish(ctx context.Context, record *dto.JobRecord) error
}

type publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) Publisher {
	return &publisher{
		conn: conn,
		cfg:  cfg,
	}
}

// Publish writes one job record onto the durable queue. Messages are marked
// persistent so a queued job survives a broker restart.
func (p *publisher) Publish(ctx context.Context, record *dto.JobRecord) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := declareTopology(ch, p.cfg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", constant.QueueName).Msg("failed to declare topology")
		return err
	}

	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		constant.ExchangeName,
		constant.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    record.UUID,
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("uuid", record.UUID).Msg("published job record")
	return nil
}
