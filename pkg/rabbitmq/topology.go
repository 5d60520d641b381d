package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"zoom-ingest/config"
	"zoom-ingest/constant"
)

// declareTopology declares the durable exchange/queue pair used by both the
// webhook publisher and the worker consumer. Declaration is idempotent, so
// whichever side starts first sets the topology up. When a retry ceiling is
// configured the queue is declared with a dead-letter exchange attached;
// both sides must then run with the same ceiling setting or redeclaration
// fails on mismatched queue arguments.
func declareTopology(ch *amqp.Channel, cfg *config.RabbitMQ) (amqp.Queue, error) {
	err := ch.ExchangeDeclare(constant.ExchangeName, cfg.Kind, true, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, err
	}

	var args amqp.Table
	if cfg.MaxAttempts > 0 {
		err = ch.ExchangeDeclare(constant.DLXName, cfg.Kind, true, false, false, false, nil)
		if err != nil {
			return amqp.Queue{}, err
		}

		dlq, err := ch.QueueDeclare(constant.DLQName, true, false, false, false, nil)
		if err != nil {
			return amqp.Queue{}, err
		}

		err = ch.QueueBind(dlq.Name, constant.DLQRoutingKey, constant.DLXName, false, nil)
		if err != nil {
			return amqp.Queue{}, err
		}

		args = amqp.Table{
			"x-dead-letter-exchange":    constant.DLXName,
			"x-dead-letter-routing-key": constant.DLQRoutingKey,
		}
	}

	q, err := ch.QueueDeclare(constant.QueueName, true, false, false, false, args)
	if err != nil {
		return amqp.Queue{}, err
	}

	err = ch.QueueBind(q.Name, constant.RoutingKey, constant.ExchangeName, false, nil)
	if err != nil {
		return amqp.Queue{}, err
	}

	return q, nil
}
