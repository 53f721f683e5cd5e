package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// bufPool reuses encode buffers between publishes. With a single publisher
// there is one buffer in the pool at all times, concurrent publishers make
// it grow as needed.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const defaultOrderExchange = "falcon_order"

// OrderEvent is the message published on order lifecycle transitions.
// Routing key: order.<kind>, e.g. order.settled, order.refunded.
type OrderEvent struct {
	OrderID        string          `json:"order_id"`
	AccountID      string          `json:"account_id"`
	State          string          `json:"state"`
	Kind           string          `json:"kind"`
	DepositAddress string          `json:"deposit_address"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	ExpiresAt      time.Time       `json:"expires_at"`
	PublishedAt    time.Time       `json:"published_at"`
}

type Client interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	// Close will close all connections to rabbitmq
	Close() error
}

type DefaultClient struct {
	amqp   AMQPClient
	logger *logrus.Logger

	orderExchange string
}

type ClientOption = func(client *DefaultClient)

func WithOrderExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.orderExchange = exchange
	}
}

func WithLogger(logger *logrus.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

// NewClient declares the order exchange and returns a publishing client.
func NewClient(amqpClient AMQPClient, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		amqp:          amqpClient,
		logger:        logrus.New(),
		orderExchange: defaultOrderExchange,
	}
	for _, opt := range options {
		opt(client)
	}

	if err := amqpClient.DeclareExchange(client.orderExchange, "topic"); err != nil {
		return nil, err
	}
	return client, nil
}

func (client *DefaultClient) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	event.PublishedAt = time.Now()

	buf := bufPool.Get().(*bytes.Buffer)
	defer bufPool.Put(buf)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(event); err != nil {
		return err
	}

	routingKey := fmt.Sprintf("order.%s", event.Kind)
	err := client.amqp.PublishToExchange(ctx, client.orderExchange, routingKey, buf.Bytes())
	if err != nil {
		client.logger.Errorf("Could not publish order event order_id:%s routing_key:%s %v", event.OrderID, routingKey, err)
		return err
	}
	client.logger.Debugf("Published order event order_id:%s routing_key:%s", event.OrderID, routingKey)
	return nil
}

func (client *DefaultClient) Close() error {
	return client.amqp.Close()
}
