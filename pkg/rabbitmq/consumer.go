package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"zoom-ingest/config"
	"zoom-ingest/constant"
	"zoom-ingest/service"
)

// Consumer delivers queued job records to a handler. Consume blocks on a
// subscription until the context is cancelled; Drain processes whatever is
// queued right now and returns. Both apply identical per-delivery semantics:
// ack only once the handler has durably recorded the outcome, requeue on
// failure (or dead-letter after the configured ceiling).
type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
	Drain(ctx context.Context, dependencies T) (int, error)
}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	handler    func(ctx context.Context, msg amqp.Delivery, dependencies T) error
	numWorkers int
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	numWorkers int,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		handler:    handler,
		numWorkers: numWorkers,
	}
}

func (c *consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := declareTopology(ch, c.cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", constant.QueueName).Msg("failed to declare topology")
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", q.Name).Msg("failed to set QoS")
		return err
	}

	consumerTag := "zoom-ingest-" + uuid.NewString()
	deliveries, err := ch.Consume(q.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", q.Name).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", q.Name).
		Str("consumer_tag", consumerTag).
		Int("workers", c.numWorkers).
		Msg("consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				c.handleDelivery(ctx, msg, dependencies)
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

// messageGetter is the slice of *amqp.Channel the drain loop needs.
type messageGetter interface {
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
}

// Drain pulls currently-queued messages one at a time, then returns the
// number processed. Restartable: anything unacknowledged or requeued goes
// back on the queue for the next run.
func (c *consumer[T]) Drain(ctx context.Context, dependencies T) (int, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	q, err := declareTopology(ch, c.cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", constant.QueueName).Msg("failed to declare topology")
		return 0, err
	}

	return c.drainQueue(ctx, ch, q.Name, int(q.Messages), dependencies)
}

// drainQueue attempts each message queued at entry at most once. The bound
// matters: a failed job is nacked back onto the queue, and an unbounded
// get-until-empty loop would fetch it straight back and spin on it instead
// of leaving it for a later run.
func (c *consumer[T]) drainQueue(ctx context.Context, ch messageGetter, queue string, pending int, dependencies T) (int, error) {
	processed := 0
	for attempted := 0; attempted < pending; attempted++ {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		msg, ok, err := ch.Get(queue, false)
		if err != nil {
			return processed, err
		}
		if !ok {
			break
		}

		c.handleDelivery(ctx, msg, dependencies)
		processed++
	}

	zerolog.Ctx(ctx).Info().Int("processed", processed).Msg("queue drained")
	return processed, nil
}

// handleDelivery runs the handler with in-process retries and settles the
// message. Default posture is indefinite redelivery: a failed job is nacked
// back onto the queue so a later run picks it up again. With max_attempts set,
// exhausted or non-retryable jobs are dead-lettered instead. A non-retryable
// job with no DLQ configured is dropped with an ack, since requeueing a
// message that can never succeed just loops it forever.
func (c *consumer[T]) handleDelivery(ctx context.Context, msg amqp.Delivery, dependencies T) {
	operation := func() (struct{}, error) {
		err := c.handler(ctx, msg, dependencies)
		if err != nil && errors.Is(err, service.ErrNonRetryable) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	maxTries := uint(1)
	if c.cfg.MaxAttempts > 0 {
		maxTries = uint(c.cfg.MaxAttempts)
	}

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(maxTries))
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
		}
	case errors.Is(err, service.ErrNonRetryable):
		zerolog.Ctx(ctx).Error().Err(err).Str("message_id", msg.MessageId).Msg("dropping non-retryable job")
		if c.cfg.MaxAttempts > 0 {
			if nackErr := msg.Nack(false, false); nackErr != nil {
				zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack message to dead-letter queue")
			}
		} else {
			if ackErr := msg.Ack(false); ackErr != nil {
				zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
			}
		}
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("message_id", msg.MessageId).Msg("failed to handle message")
		requeue := c.cfg.MaxAttempts == 0
		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack message")
		}
	}
}
