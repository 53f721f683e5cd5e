package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPClient is a thin wrapper around the amqp091 connection so the
// publishing logic can be tested without a live broker.
type AMQPClient interface {
	DeclareExchange(name, kind string) error
	PublishToExchange(ctx context.Context, exchange, routingKey string, body []byte) error
	Close() error
}

type defaultAMQPClient struct {
	conn *amqp.Connection

	// It is recommended that, when possible, publishers and consumers use
	// separate channels so publishing is isolated from any flow control.
	publishChannel *amqp.Channel
}

// DialAMQP connects to the broker at uri and opens a publishing channel.
func DialAMQP(uri string) (AMQPClient, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &defaultAMQPClient{
		conn:           conn,
		publishChannel: ch,
	}, nil
}

func (c *defaultAMQPClient) DeclareExchange(name, kind string) error {
	return c.publishChannel.ExchangeDeclare(
		name,
		kind,
		// Durable and non-auto-deleted, the exchange survives broker restarts
		true,
		false,
		// Non-internal and no-wait disabled
		false,
		false,
		nil,
	)
}

func (c *defaultAMQPClient) PublishToExchange(ctx context.Context, exchange, routingKey string, body []byte) error {
	return c.publishChannel.PublishWithContext(ctx,
		exchange,
		routingKey,
		// Mandatory and immediate publishing are not used
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (c *defaultAMQPClient) Close() error {
	if err := c.publishChannel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
